package pool

import (
	"bufio"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// ---------------------------------------------------------------
// Read-path pools
//
// Every paged read and every stream opens one log resource and
// reads it line by line. Readers are recycled between requests to
// keep allocation flat when many operators tail logs at once.
// ---------------------------------------------------------------

// ReaderSize is the bufio.Reader size handed out by ReaderPool.
const ReaderSize = 64 * 1024

var (
	// ReaderPool:
	//   - bufio.Reader used to split a resource into lines
	ReaderPool = sync.Pool{
		New: func() any { return bufio.NewReaderSize(nil, ReaderSize) },
	}

	// GzipPool:
	//   - gzip.Reader for compressed resources
	//   - empty until the first compressed resource is read; a gzip.Reader
	//     cannot be built without a valid header
	GzipPool sync.Pool
)

// GetReader returns a pooled bufio.Reader reading from r.
func GetReader(r io.Reader) *bufio.Reader {
	br := ReaderPool.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

// PutReader drops the reference to the underlying source and
// returns br to the pool.
func PutReader(br *bufio.Reader) {
	if br == nil {
		return
	}
	br.Reset(nil)
	ReaderPool.Put(br)
}

// GetGzip returns a gzip.Reader over r, reusing a pooled one if possible.
func GetGzip(r io.Reader) (*gzip.Reader, error) {
	if zr, ok := GzipPool.Get().(*gzip.Reader); ok {
		if err := zr.Reset(r); err != nil {
			GzipPool.Put(zr)
			return nil, err
		}
		return zr, nil
	}
	return gzip.NewReader(r)
}

// PutGzip closes zr and returns it to the pool.
func PutGzip(zr *gzip.Reader) {
	if zr == nil {
		return
	}
	_ = zr.Close()
	GzipPool.Put(zr)
}
