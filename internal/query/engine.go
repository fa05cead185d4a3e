// Package query evaluates a LogQuery against one log resource.
//
// Pipeline per line, in storage order:
//
//	raw line -> Decryptor -> ExtractTimestamp -> Filter -> LogEntry
//
// Two read modes share that pipeline: a lazy Stream, and a paged Read
// that materializes one page while counting every match.
package query

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"payload-log/internal/decrypt"
	"payload-log/internal/metrics"
	"payload-log/internal/model"
	"payload-log/internal/source"
)

// Engine
// ------------------------------------------------------------
// Stateless apart from its collaborators; safe for concurrent use.
type Engine struct {
	src     source.Source
	dec     decrypt.Decryptor
	metrics *metrics.Metrics
}

func NewEngine(src source.Source, dec decrypt.Decryptor, m *metrics.Metrics) *Engine {
	if dec == nil {
		dec = decrypt.Nop{}
	}
	if m == nil {
		m = metrics.New()
	}
	return &Engine{src: src, dec: dec, metrics: m}
}

// Stream opens a lazy stream of matching entries for addr.
// Page and PageSize are ignored; Limit and ExcludeFromBoundary apply.
// A missing resource yields an empty stream.
func (e *Engine) Stream(ctx context.Context, addr model.Address, q model.LogQuery) (*Stream, error) {
	return e.open(ctx, addr, q, true)
}

// Read returns one page of matching entries.
//
// Every line is scanned so TotalMatched is exact, but only the entries
// of the requested page are retained. Limit is ignored in this mode.
func (e *Engine) Read(ctx context.Context, addr model.Address, q model.LogQuery) (model.LogReadResult, error) {
	q = q.Normalized()
	q.Limit = nil

	atomic.AddInt64(&e.metrics.PagedReadsTotal, 1)

	s, err := e.open(ctx, addr, q, false)
	if err != nil {
		return model.LogReadResult{}, err
	}
	defer s.Close()

	skip := int64(q.Page-1) * int64(q.PageSize)
	entries := make([]model.LogEntry, 0, q.PageSize)

	var total int64
	for s.Next() {
		if total >= skip && len(entries) < q.PageSize {
			entries = append(entries, s.Entry())
		}
		total++
	}
	if err := s.Err(); err != nil {
		return model.LogReadResult{}, err
	}

	atomic.AddInt64(&e.metrics.EntriesReturnedTotal, int64(len(entries)))

	return model.LogReadResult{
		Entries:      entries,
		Page:         q.Page,
		PageSize:     q.PageSize,
		HasMore:      skip+int64(len(entries)) < total,
		TotalMatched: &total,
	}, nil
}

func (e *Engine) open(ctx context.Context, addr model.Address, q model.LogQuery, tracked bool) (*Stream, error) {
	lines, err := e.src.OpenLines(ctx, addr)
	if err != nil {
		if !errors.Is(err, model.ErrInvalidAddress) {
			atomic.AddInt64(&e.metrics.StorageErrorsTotal, 1)
		}
		return nil, err
	}
	return newStream(ctx, addr, lines, e.dec, q, e.metrics, tracked), nil
}

// ResumeAfter returns q narrowed to entries strictly after cursor.
// Use it with Stream.Cursor to reopen a stream where the previous one
// stopped. Entries sharing the cursor's exact timestamp are skipped.
func ResumeAfter(q model.LogQuery, cursor time.Time) model.LogQuery {
	c := cursor
	q.From = &c
	q.ExcludeFromBoundary = true
	return q
}
