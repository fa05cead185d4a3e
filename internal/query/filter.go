package query

import (
	"strings"
	"time"

	"payload-log/internal/model"
	"payload-log/internal/parser"
)

// Filter
// ------------------------------------------------------------
// Per-line predicate built once from a LogQuery.
//
// Evaluation order is fixed and short-circuits:
//  1. lower time bound
//  2. upper time bound
//  3. keyword
//  4. status code
//
// Lines without a timestamp are never rejected by 1 or 2, so malformed
// or continuation lines still show up under a keyword or status search.
type Filter struct {
	from        *time.Time
	excludeFrom bool
	to          *time.Time

	keyword    string // lower-cased
	hasKeyword bool

	status *int
}

func NewFilter(q model.LogQuery) Filter {
	f := Filter{
		from:        q.From,
		excludeFrom: q.ExcludeFromBoundary,
		to:          q.To,
		status:      q.StatusCode,
	}
	if q.Keyword != nil {
		f.keyword = strings.ToLower(*q.Keyword)
		f.hasKeyword = true
	}
	return f
}

// Match reports whether the decrypted line with timestamp ts (nil when
// absent) survives the query.
func (f Filter) Match(line string, ts *time.Time) bool {
	if f.from != nil && ts != nil {
		if f.excludeFrom {
			if !ts.After(*f.from) {
				return false
			}
		} else if ts.Before(*f.from) {
			return false
		}
	}

	if f.to != nil && ts != nil && ts.After(*f.to) {
		return false
	}

	if f.hasKeyword && !strings.Contains(strings.ToLower(line), f.keyword) {
		return false
	}

	if f.status != nil {
		code := parser.ExtractStatusCode(line)
		if code == nil || *code != *f.status {
			return false
		}
	}
	return true
}
