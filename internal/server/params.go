package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"payload-log/internal/model"
)

// paramError is answered with 400.
type paramError struct{ msg string }

func (e *paramError) Error() string { return e.msg }

// timeLayouts accepted for from/to. Zone-less values are UTC.
// Fractional seconds are accepted after any layout with seconds.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
}

// parseTime returns nil for anything it cannot read.
func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	// "2024-05-01 10:00:00" -> "2024-05-01T10:00:00"
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parseInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseAddress reads serviceName and sessionId. Both are required and
// must not contain path characters.
func parseAddress(r *http.Request) (model.Address, error) {
	v := r.URL.Query()
	addr := model.Address{
		Service: strings.TrimSpace(v.Get("serviceName")),
		Session: strings.TrimSpace(v.Get("sessionId")),
	}
	if addr.Service == "" || addr.Session == "" {
		return model.Address{}, &paramError{msg: "serviceName and sessionId are required"}
	}
	if err := addr.Validate(); err != nil {
		return model.Address{}, &paramError{msg: err.Error()}
	}
	return addr, nil
}

// parseQuery reads the optional filter and paging fields.
// Values that do not parse are treated as absent.
func (h *Handler) parseQuery(r *http.Request) model.LogQuery {
	v := r.URL.Query()
	var q model.LogQuery

	if kw := v.Get("q"); kw != "" {
		q.Keyword = &kw
	}
	if n, ok := parseInt(v.Get("status")); ok {
		q.StatusCode = &n
	}
	q.From = parseTime(v.Get("from"))
	q.To = parseTime(v.Get("to"))

	if n, ok := parseInt(v.Get("limit")); ok {
		q.Limit = &n
	}
	if b, err := strconv.ParseBool(v.Get("excludeFrom")); err == nil {
		q.ExcludeFromBoundary = b
	}

	q.Page = 1
	if n, ok := parseInt(v.Get("page")); ok && n > 0 {
		q.Page = n
	}
	q.PageSize = h.cfg.DefaultPageSize
	if n, ok := parseInt(v.Get("pageSize")); ok && n > 0 {
		q.PageSize = min(n, h.cfg.MaxPageSize)
	}
	return q
}
