package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"payload-log/internal/pool"

	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

// lineReader
// ------------------------------------------------------------
// Splits one open resource into lines.
//
//   - "\n" and "\r\n" terminators are stripped
//   - a final line without terminator is still delivered
//   - gzip resources (detected by magic bytes) are decompressed on the fly
//   - ctx is checked before every line; a cancelled ctx ends iteration
//     and is reported by Err
//
// The resource handle and the pooled readers are released once, when
// iteration ends for any reason or Close is called.
type lineReader struct {
	ctx   context.Context
	rc    io.ReadCloser
	raw   *bufio.Reader // over rc
	zr    *gzip.Reader  // non-nil for compressed resources
	lines *bufio.Reader // raw, or a second reader over zr

	line   string
	err    error
	closed bool
}

func newLineReader(ctx context.Context, rc io.ReadCloser) (*lineReader, error) {
	r := &lineReader{ctx: ctx, rc: rc, raw: pool.GetReader(rc)}
	r.lines = r.raw

	magic, err := r.raw.Peek(len(gzipMagic))
	switch {
	case err == nil && string(magic) == string(gzipMagic):
		zr, err := pool.GetGzip(r.raw)
		if err != nil {
			r.release()
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		r.zr = zr
		r.lines = pool.GetReader(zr)
	case err != nil && !errors.Is(err, io.EOF):
		r.release()
		return nil, err
	}
	return r, nil
}

func (r *lineReader) Next() bool {
	if r.closed {
		return false
	}
	if err := r.ctx.Err(); err != nil {
		r.err = err
		r.release()
		return false
	}

	s, err := r.lines.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && s != "" {
			r.line = trimEOL(s)
			return true
		}
		if !errors.Is(err, io.EOF) {
			if ctxErr := r.ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			r.err = err
		}
		r.release()
		return false
	}

	r.line = trimEOL(s)
	return true
}

func (r *lineReader) Line() string { return r.line }

func (r *lineReader) Err() error { return r.err }

func (r *lineReader) Close() error {
	return r.release()
}

func (r *lineReader) release() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.zr != nil {
		pool.PutReader(r.lines)
		pool.PutGzip(r.zr)
		r.zr = nil
	}
	pool.PutReader(r.raw)
	r.raw, r.lines = nil, nil
	return r.rc.Close()
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
