// internal/model/log.go
package model

import (
	"time"
)

// LogEntry
// ------------------------------------------------------------
// A single decrypted log line as delivered to callers.
// Timestamp is nil when the line does not start with a recognised
// date-time token. Values are never modified after construction.
type LogEntry struct {
	Timestamp *time.Time
	Content   string
}

// LogQuery
// ------------------------------------------------------------
// Filter and paging parameters for one read.
//
// A LogQuery is always passed by value. The streaming limit counter is
// copied into the stream that consumes it, so the same query can back
// several concurrent streams without their limits interfering.
type LogQuery struct {
	Keyword    *string    // case-insensitive substring
	From       *time.Time // lower time bound
	To         *time.Time // upper time bound (inclusive)
	StatusCode *int       // exact status code

	Limit               *int // streaming: max entries to deliver
	ExcludeFromBoundary bool // streaming resume: reject ts == From as well

	Page     int // paged: 1-based
	PageSize int // paged: 1..MaxPageSize
}

const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

// Normalized returns a copy with Page and PageSize clamped into range.
// Page < 1 becomes 1, PageSize < 1 becomes DefaultPageSize and
// PageSize > MaxPageSize becomes MaxPageSize.
func (q LogQuery) Normalized() LogQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// LogReadResult is the materialized answer of a paged read.
type LogReadResult struct {
	Entries      []LogEntry
	Page         int
	PageSize     int
	HasMore      bool
	TotalMatched *int64
}
