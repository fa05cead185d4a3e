package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"payload-log/internal/cache"
	"payload-log/internal/config"
	"payload-log/internal/metrics"
	"payload-log/internal/model"
	"payload-log/internal/query"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	cfg      config.Config
	metrics  *metrics.Metrics
	engine   *query.Engine
	sessions *cache.SessionCache
}

func NewHandler(cfg config.Config, m *metrics.Metrics, e *query.Engine, sessions *cache.SessionCache) *Handler {
	return &Handler{
		cfg:      cfg,
		metrics:  m,
		engine:   e,
		sessions: sessions,
	}
}

// Router
//
//	GET /payload-log/stream  SSE, one event per matching line
//	GET /payload-log         one page of matching lines as JSON
//	GET /metadata            {service: [session, ...]}
//	GET /metrics             counters, text
//	GET /health              "ok"
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(accessLog)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", h.HandleMetrics)

	r.Get("/metadata", h.HandleMetadata)
	r.Get("/payload-log", h.HandlePage)
	r.Get("/payload-log/stream", h.HandleStream)

	return r
}

// entryJSON is the wire form of a LogEntry.
// Timestamp is RFC3339Nano in UTC, or "" when the line has none.
type entryJSON struct {
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

func toEntryJSON(e model.LogEntry) entryJSON {
	out := entryJSON{Content: e.Content}
	if e.Timestamp != nil {
		out.Timestamp = e.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return out
}

type pageJSON struct {
	Entries      []entryJSON `json:"entries"`
	Page         int         `json:"page"`
	PageSize     int         `json:"pageSize"`
	HasMore      bool        `json:"hasMore"`
	TotalMatched *int64      `json:"totalMatched,omitempty"`
}

// request parses and validates the common parameters, answering 400
// itself when they are unusable.
func (h *Handler) request(w http.ResponseWriter, r *http.Request) (model.Address, model.LogQuery, bool) {
	atomic.AddInt64(&h.metrics.HTTPRequestsTotal, 1)

	addr, err := parseAddress(r)
	if err != nil {
		atomic.AddInt64(&h.metrics.HTTPRequestsRejectedTotal, 1)
		writeError(w, http.StatusBadRequest, err.Error())
		return model.Address{}, model.LogQuery{}, false
	}
	return addr, h.parseQuery(r), true
}

// HandlePage
//
// Paged read. Every line is scanned so totalMatched is exact.
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	addr, q, ok := h.request(w, r)
	if !ok {
		return
	}

	res, err := h.engine.Read(r.Context(), addr, q)
	if err != nil {
		h.fail(w, addr, err)
		return
	}

	out := pageJSON{
		Entries:      make([]entryJSON, len(res.Entries)),
		Page:         res.Page,
		PageSize:     res.PageSize,
		HasMore:      res.HasMore,
		TotalMatched: res.TotalMatched,
	}
	for i, e := range res.Entries {
		out.Entries[i] = toEntryJSON(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleStream
//
// Server-Sent Events. Each matching line becomes
//
//	id: <timestamp>        (only when the line has one)
//	data: {"timestamp":"...","content":"..."}
//
// Entries are pulled one at a time and flushed immediately, so a slow
// client slows the storage read instead of buffering in memory.
//
// A client reconnecting with Last-Event-ID resumes strictly after that
// timestamp. An error after the headers went out is sent as a final
// "event: error" frame.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	addr, q, ok := h.request(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if cursor := parseTime(r.Header.Get("Last-Event-ID")); cursor != nil {
		q = query.ResumeAfter(q, *cursor)
	}

	ctx := r.Context()
	s, err := h.engine.Stream(ctx, addr, q)
	if err != nil {
		h.fail(w, addr, err)
		return
	}
	defer s.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for s.Next() {
		e := s.Entry()
		b, err := json.Marshal(toEntryJSON(e))
		if err != nil {
			log.Error().Err(err).Msg("encode stream entry")
			return
		}
		if e.Timestamp != nil {
			if _, err := fmt.Fprintf(w, "id: %s\n", e.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
				return
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			return
		}
		flusher.Flush()
	}

	if err := s.Err(); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Str("object", addr.ObjectName()).Msg("stream aborted")
		b, _ := json.Marshal(errorJSON{Error: err.Error()})
		_, _ = fmt.Fprintf(w, "event: error\ndata: %s\n\n", b)
		flusher.Flush()
	}
}

// HandleMetadata
//
// Cached session index. refresh=true drops the cache first.
func (h *Handler) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&h.metrics.HTTPRequestsTotal, 1)

	if r.URL.Query().Get("refresh") == "true" {
		h.sessions.Invalidate()
	}

	idx, err := h.sessions.Get(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list sessions")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

// HandleMetrics prints the counters, one name=value per line.
func (h *Handler) HandleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, h.metrics.String())
}

func (h *Handler) fail(w http.ResponseWriter, addr model.Address, err error) {
	if errors.Is(err, model.ErrInvalidAddress) {
		atomic.AddInt64(&h.metrics.HTTPRequestsRejectedTotal, 1)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Error().Err(err).Str("object", addr.ObjectName()).Msg("read failed")
	writeError(w, http.StatusInternalServerError, err.Error())
}

type errorJSON struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorJSON{Error: msg})
}
