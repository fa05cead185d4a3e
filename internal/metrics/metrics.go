package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics is the set of counters describing the query server.
//
// Every field is updated with sync/atomic and read back by String for the
// /metrics endpoint. Gauges are marked as such; everything else only grows.
type Metrics struct {
	// ======================
	// HTTP
	// ======================

	// HTTPRequestsTotal
	// - every request reaching a query or metadata handler.
	HTTPRequestsTotal int64

	// HTTPRequestsRejectedTotal
	// - requests answered 400 before touching storage
	//   (missing serviceName/sessionId, path characters in identifiers).
	HTTPRequestsRejectedTotal int64

	// ======================
	// Query engine
	// ======================

	// PagedReadsTotal
	// - completed and failed paged reads alike.
	PagedReadsTotal int64

	// StreamsOpenedTotal / StreamsActive
	// - StreamsActive is a gauge: opened minus closed.
	// - a steadily growing StreamsActive means streams are not being closed.
	StreamsOpenedTotal int64
	StreamsActive      int64

	// LinesScannedTotal
	// - raw lines read from storage (before filtering).
	// - LinesScannedTotal / EntriesReturnedTotal is the filter selectivity.
	LinesScannedTotal int64

	// EntriesReturnedTotal
	// - entries delivered to callers (stream events + page entries).
	EntriesReturnedTotal int64

	// DecryptErrorsTotal
	// - reads aborted because a line could not be decrypted.
	// - non-zero usually means a key ring mismatch.
	DecryptErrorsTotal int64

	// StorageErrorsTotal
	// - open/read/list failures from the log source (I/O, S3, network).
	// - not-found is not an error and is not counted here.
	StorageErrorsTotal int64

	// ======================
	// Session index cache
	// ======================

	SessionCacheHitsTotal      int64
	SessionCacheMissesTotal    int64
	SessionCacheRefreshesTotal int64 // successful rebuilds
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) String() string {
	var sb strings.Builder
	sb.Grow(512)

	fmt.Fprintf(&sb, "http_requests_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsTotal))
	fmt.Fprintf(&sb, "http_requests_rejected_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsRejectedTotal))

	fmt.Fprintf(&sb, "paged_reads_total=%d\n", atomic.LoadInt64(&m.PagedReadsTotal))
	fmt.Fprintf(&sb, "streams_opened_total=%d\n", atomic.LoadInt64(&m.StreamsOpenedTotal))
	fmt.Fprintf(&sb, "streams_active=%d\n", atomic.LoadInt64(&m.StreamsActive))
	fmt.Fprintf(&sb, "lines_scanned_total=%d\n", atomic.LoadInt64(&m.LinesScannedTotal))
	fmt.Fprintf(&sb, "entries_returned_total=%d\n", atomic.LoadInt64(&m.EntriesReturnedTotal))
	fmt.Fprintf(&sb, "decrypt_errors_total=%d\n", atomic.LoadInt64(&m.DecryptErrorsTotal))
	fmt.Fprintf(&sb, "storage_errors_total=%d\n", atomic.LoadInt64(&m.StorageErrorsTotal))

	fmt.Fprintf(&sb, "session_cache_hits_total=%d\n", atomic.LoadInt64(&m.SessionCacheHitsTotal))
	fmt.Fprintf(&sb, "session_cache_misses_total=%d\n", atomic.LoadInt64(&m.SessionCacheMissesTotal))
	fmt.Fprintf(&sb, "session_cache_refreshes_total=%d\n", atomic.LoadInt64(&m.SessionCacheRefreshesTotal))

	return sb.String()
}
