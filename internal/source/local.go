package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"payload-log/internal/model"

	"github.com/rs/zerolog/log"
)

// Local reads log files from a single directory (no recursion).
type Local struct {
	dir string
}

// NewLocal creates the directory when it is missing so a fresh
// deployment starts with an empty index instead of a warning on
// every listing.
func NewLocal(dir string) *Local {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("local log directory unavailable")
	}
	return &Local{dir: dir}
}

// ListSessions
//
// os.ReadDir returns entries sorted by filename, so discovery order is
// lexical: svcA-sess1.log, svcA-sess2.log, svcB-sess1.log.
func (l *Local) ListSessions(ctx context.Context) (model.SessionIndex, error) {
	b := model.NewSessionIndexBuilder()
	if err := ctx.Err(); err != nil {
		return model.SessionIndex{}, err
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return b.Build(), nil
		}
		return model.SessionIndex{}, fmt.Errorf("list %s: %w", l.dir, err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if addr, ok := model.ParseObjectName(e.Name()); ok {
			b.Add(addr)
		}
	}
	return b.Build(), nil
}

func (l *Local) OpenLines(ctx context.Context, addr model.Address) (LineIterator, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	path := filepath.Join(l.dir, addr.ObjectName())
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	it, err := newLineReader(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return it, nil
}
