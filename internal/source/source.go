// Package source enumerates raw log lines from a storage backend.
//
// Two backends share one contract:
//   - Local: a directory of <service>-<session>.log files
//   - S3:    the same names as objects under a bucket prefix
//
// A missing resource or a missing root is "no logs yet", never an error.
package source

import (
	"context"

	"payload-log/internal/model"
)

// Source is the storage backend behind the query engine.
type Source interface {
	// ListSessions scans storage for log resources and groups the
	// session ids by service.
	ListSessions(ctx context.Context) (model.SessionIndex, error)

	// OpenLines opens the resource for addr. When it does not exist the
	// iterator is empty. The caller must Close the iterator.
	OpenLines(ctx context.Context, addr model.Address) (LineIterator, error)
}

// LineIterator yields raw lines in storage order.
//
//	it, err := src.OpenLines(ctx, addr)
//	...
//	defer it.Close()
//	for it.Next() {
//		use(it.Line())
//	}
//	if err := it.Err(); err != nil { ... }
//
// The underlying handle is released as soon as Next returns false;
// Close is still required for early exits and is safe to call twice.
type LineIterator interface {
	Next() bool
	Line() string
	Err() error
	Close() error
}

// emptyLines is returned for resources that do not exist.
type emptyLines struct{}

func (emptyLines) Next() bool   { return false }
func (emptyLines) Line() string { return "" }
func (emptyLines) Err() error   { return nil }
func (emptyLines) Close() error { return nil }

// Empty returns an iterator with no lines.
func Empty() LineIterator { return emptyLines{} }
