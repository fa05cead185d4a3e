package query

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"payload-log/internal/decrypt"
	"payload-log/internal/metrics"
	"payload-log/internal/model"
	"payload-log/internal/parser"
	"payload-log/internal/source"

	"github.com/rs/zerolog/log"
)

// Stream
// ------------------------------------------------------------
// Lazy, non-restartable sequence of filtered entries for one address.
//
//	s, err := engine.Stream(ctx, addr, q)
//	...
//	defer s.Close()
//	for s.Next() {
//		send(s.Entry())
//	}
//	if err := s.Err(); err != nil { ... }
//
// Nothing is read ahead: each Next reads only as many lines as it needs
// to find the next match, so a slow consumer stalls the storage read.
//
// The limit counter belongs to the stream. The LogQuery it was built from
// is never modified.
type Stream struct {
	ctx     context.Context
	addr    model.Address
	lines   source.LineIterator
	dec     decrypt.Decryptor
	filter  Filter
	metrics *metrics.Metrics

	limited   bool
	remaining int

	// tracked streams count toward StreamsActive and EntriesReturned;
	// the paged read drives an untracked one.
	tracked bool

	entry  model.LogEntry
	cursor *time.Time

	scanned   int64
	delivered int64

	err  error
	done bool
}

func newStream(ctx context.Context, addr model.Address, lines source.LineIterator, dec decrypt.Decryptor, q model.LogQuery, m *metrics.Metrics, tracked bool) *Stream {
	s := &Stream{
		ctx:     ctx,
		addr:    addr,
		lines:   lines,
		dec:     dec,
		filter:  NewFilter(q),
		metrics: m,
		tracked: tracked,
	}
	if q.Limit != nil {
		s.limited = true
		s.remaining = *q.Limit
	}
	if tracked {
		atomic.AddInt64(&m.StreamsOpenedTotal, 1)
		atomic.AddInt64(&m.StreamsActive, 1)
	}
	return s
}

// Next advances to the next matching entry.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	// limit reached: stop before reading anything else
	if s.limited && s.remaining <= 0 {
		s.finish(nil)
		return false
	}

	for s.lines.Next() {
		s.scanned++
		atomic.AddInt64(&s.metrics.LinesScannedTotal, 1)

		line, err := s.dec.Decrypt(s.ctx, s.lines.Line())
		if err != nil {
			atomic.AddInt64(&s.metrics.DecryptErrorsTotal, 1)
			s.finish(fmt.Errorf("%s line %d: %w", s.addr.ObjectName(), s.scanned, err))
			return false
		}

		ts := parser.ExtractTimestamp(line)
		if !s.filter.Match(line, ts) {
			continue
		}

		s.entry = model.LogEntry{Timestamp: ts, Content: line}
		if ts != nil {
			s.cursor = ts
		}
		if s.limited {
			s.remaining--
		}
		s.delivered++
		if s.tracked {
			atomic.AddInt64(&s.metrics.EntriesReturnedTotal, 1)
		}
		return true
	}

	err := s.lines.Err()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		atomic.AddInt64(&s.metrics.StorageErrorsTotal, 1)
		err = fmt.Errorf("read %s: %w", s.addr.ObjectName(), err)
	}
	s.finish(err)
	return false
}

// Entry returns the entry produced by the last successful Next.
func (s *Stream) Entry() model.LogEntry { return s.entry }

// Err returns the error that ended the stream, if any.
// A cancelled context is reported as ctx.Err().
func (s *Stream) Err() error { return s.err }

// Cursor is the timestamp of the last delivered entry that had one.
// Pass it to ResumeAfter to continue where this stream stopped.
func (s *Stream) Cursor() *time.Time { return s.cursor }

// Close releases the underlying read handle. Safe to call more than once.
func (s *Stream) Close() error {
	s.finish(nil)
	return nil
}

func (s *Stream) finish(err error) {
	if s.done {
		return
	}
	s.done = true
	s.err = err
	_ = s.lines.Close()

	if s.tracked {
		atomic.AddInt64(&s.metrics.StreamsActive, -1)
		log.Debug().
			Str("object", s.addr.ObjectName()).
			Int64("scanned", s.scanned).
			Int64("delivered", s.delivered).
			AnErr("cause", err).
			Msg("stream closed")
	}
}
