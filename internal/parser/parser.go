// Package parser pulls the optional timestamp and status code out of a raw
// log line. Nothing here returns an error: a line that does not match simply
// carries no value for that field.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// optional "[", date, "T" or " ", time, optional fraction, optional zone, optional "]"
	timestampRe = regexp.MustCompile(`^\[?(\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\]?`)

	// status=404, Status: 404, statusCode=404 ...
	statusKVRe = regexp.MustCompile(`(?i)status(?:Code)?[=:]\s*(\d{3})`)
	// "status": 404 / 'status':404
	statusQuotedRe = regexp.MustCompile(`["']status["']\s*:\s*(\d{3})`)
)

// ExtractTimestamp returns the instant at the start of line, or nil.
// Tokens without a zone designator are read as UTC.
func ExtractTimestamp(line string) *time.Time {
	m := timestampRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	ts, ok := parseToken(m[1])
	if !ok {
		return nil
	}
	return &ts
}

// ExtractStatusCode returns the first status code found in line, or nil.
// The key=value form is tried before the quoted JSON-key form.
func ExtractStatusCode(line string) *int {
	for _, re := range []*regexp.Regexp{statusKVRe, statusQuotedRe} {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		code, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return &code
	}
	return nil
}

// parseToken turns a matched date-time token into a UTC instant.
//
//	2024-01-01 10:00:00        -> 2024-01-01T10:00:00Z
//	2024-01-01T10:00:00.5+0900 -> 2024-01-01T01:00:00.5Z
func parseToken(tok string) (time.Time, bool) {
	// date (10) + separator (1) + clock (8)
	const clockEnd = 19

	var b strings.Builder
	b.Grow(len(tok) + 6)
	b.WriteString(tok[:10])
	b.WriteByte('T')
	b.WriteString(tok[11:clockEnd])

	rest := tok[clockEnd:]
	if strings.HasPrefix(rest, ".") {
		i := 1
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		frac := rest[1:i]
		if len(frac) > 9 {
			frac = frac[:9]
		}
		b.WriteByte('.')
		b.WriteString(frac)
		rest = rest[i:]
	}

	switch {
	case rest == "":
		b.WriteByte('Z')
	case rest == "Z":
		b.WriteString(rest)
	case len(rest) == 5: // ±HHMM
		b.WriteString(rest[:3])
		b.WriteByte(':')
		b.WriteString(rest[3:])
	default: // ±HH:MM
		b.WriteString(rest)
	}

	ts, err := time.Parse(time.RFC3339Nano, b.String())
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}
