// Package generator writes a demo session file for local runs:
//
//	server generate
//
// Each line looks like a real payload log line:
//
//	2024-05-01T10:00:00.01Z v1:{"method":"GET","url":"/api/resource/1","status":200,"duration":37} [status:200]
//
// When a Sealer is given the JSON payload is written as a fernet token
// instead, so the file exercises the decrypting read path.
package generator

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"payload-log/internal/decrypt"
	"payload-log/internal/model"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

// DemoAddress is the session the generator writes.
var DemoAddress = model.Address{Service: "demoService", Session: "demoSession1"}

// Sealer turns a plaintext payload into an envelope ("v1:<token>").
type Sealer interface {
	Seal(plaintext string) (string, error)
}

type Options struct {
	Dir    string
	Count  int
	Gzip   bool
	Sealer Sealer // nil: plain "v1:<json>" payloads

	Now  time.Time  // zero: time.Now
	Rand *rand.Rand // nil: time seeded
}

type payload struct {
	Method   string `json:"method"`
	URL      string `json:"url"`
	Status   int    `json:"status"`
	Duration int    `json:"duration"`
}

// Generate writes Count lines starting one day before Now, 10ms apart,
// and returns the file path. Roughly 80% of lines are 200, the rest are
// split between 500 and 404.
//
// The file is written next to its final name and renamed into place, so
// a server reading the directory never sees it half written.
func Generate(opts Options) (string, error) {
	if opts.Count < 0 {
		return "", fmt.Errorf("generate: negative count %d", opts.Count)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(opts.Now.UnixNano()))
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("generate: mkdir: %w", err)
	}
	path := filepath.Join(opts.Dir, DemoAddress.ObjectName())

	log.Info().
		Str("path", path).
		Int("count", opts.Count).
		Bool("gzip", opts.Gzip).
		Bool("sealed", opts.Sealer != nil).
		Msg("generating demo log")

	tmp, err := os.CreateTemp(opts.Dir, ".generate-*")
	if err != nil {
		return "", fmt.Errorf("generate: create: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after rename

	if err := write(tmp, opts); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("generate: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("generate: rename: %w", err)
	}

	log.Info().Str("path", path).Msg("generation complete")
	return path, nil
}

func write(f *os.File, opts Options) error {
	var (
		out io.Writer = f
		gz  *gzip.Writer
	)
	if opts.Gzip {
		gz = gzip.NewWriter(f)
		out = gz
	}
	bw := bufio.NewWriterSize(out, 64*1024)

	base := opts.Now.UTC().Add(-24 * time.Hour)
	for i := 0; i < opts.Count; i++ {
		line, err := makeLine(opts, base.Add(time.Duration(i)*10*time.Millisecond), i)
		if err != nil {
			return err
		}
		if _, err := bw.WriteString(line); err != nil {
			return fmt.Errorf("generate: write: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("generate: write: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("generate: flush: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("generate: gzip close: %w", err)
		}
	}
	return nil
}

func makeLine(opts Options, ts time.Time, i int) (string, error) {
	rnd := opts.Rand

	status := 200
	if rnd.Intn(10) >= 8 {
		status = 404
		if rnd.Intn(2) == 0 {
			status = 500
		}
	}

	b, err := json.Marshal(payload{
		Method:   "GET",
		URL:      fmt.Sprintf("/api/resource/%d", i),
		Status:   status,
		Duration: 10 + rnd.Intn(490),
	})
	if err != nil {
		return "", fmt.Errorf("generate: encode payload: %w", err)
	}

	envelope := decrypt.EnvelopeTag + string(b)
	if opts.Sealer != nil {
		if envelope, err = opts.Sealer.Seal(string(b)); err != nil {
			return "", fmt.Errorf("generate: seal: %w", err)
		}
	}

	return fmt.Sprintf("%s %s [status:%d]", ts.Format(time.RFC3339Nano), envelope, status), nil
}
