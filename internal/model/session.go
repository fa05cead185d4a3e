// internal/model/session.go
package model

import (
	"bytes"
	"strings"

	json "github.com/goccy/go-json"
)

// SessionIndex
// ------------------------------------------------------------
// Discovery mapping: service name -> session ids.
//
//   - service lookup is case-insensitive; the first spelling seen is kept
//   - services and sessions keep discovery order
//   - sessions are de-duplicated per service
//
// An index is filled by a SessionIndexBuilder and is read-only afterwards,
// so a single value can be shared by any number of goroutines.
type SessionIndex struct {
	services []string            // display names, discovery order
	sessions map[string][]string // folded service name -> sessions
}

// Services returns service names in discovery order.
func (x SessionIndex) Services() []string {
	out := make([]string, len(x.services))
	copy(out, x.services)
	return out
}

// Sessions returns the sessions of service (case-insensitive), or nil.
func (x SessionIndex) Sessions(service string) []string {
	s := x.sessions[fold(service)]
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Len is the number of services.
func (x SessionIndex) Len() int {
	return len(x.services)
}

// MarshalJSON encodes {"service":["session",...]} keeping discovery order,
// which a plain map would lose.
func (x SessionIndex) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, svc := range x.services {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(svc)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(x.sessions[fold(svc)])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SessionIndexBuilder accumulates addresses discovered by a storage scan.
type SessionIndexBuilder struct {
	idx  SessionIndex
	seen map[string]map[string]struct{}
}

func NewSessionIndexBuilder() *SessionIndexBuilder {
	return &SessionIndexBuilder{
		idx:  SessionIndex{sessions: make(map[string][]string)},
		seen: make(map[string]map[string]struct{}),
	}
}

// Add records one discovered address. Duplicate sessions are ignored.
func (b *SessionIndexBuilder) Add(a Address) {
	key := fold(a.Service)
	seen, ok := b.seen[key]
	if !ok {
		seen = make(map[string]struct{})
		b.seen[key] = seen
		b.idx.services = append(b.idx.services, a.Service)
	}
	if _, dup := seen[a.Session]; dup {
		return
	}
	seen[a.Session] = struct{}{}
	b.idx.sessions[key] = append(b.idx.sessions[key], a.Session)
}

// Build returns the finished index. The builder must not be used afterwards.
func (b *SessionIndexBuilder) Build() SessionIndex {
	idx := b.idx
	b.idx = SessionIndex{}
	b.seen = nil
	return idx
}

func fold(s string) string {
	return strings.ToLower(s)
}
