package query

import (
	"context"
	"fmt"
	"strings"

	"payload-log/internal/decrypt"
	"payload-log/internal/model"
	"payload-log/internal/source"
)

// memSource serves lines from memory keyed by object name.
type memSource struct {
	files   map[string][]string
	readErr error // returned by Err after all lines are consumed
	openErr error

	opened int
	closed int
	read   int
}

func newMemSource(files map[string]string) *memSource {
	m := &memSource{files: map[string][]string{}}
	for name, body := range files {
		m.files[name] = strings.Split(strings.TrimSuffix(body, "\n"), "\n")
	}
	return m
}

func (m *memSource) ListSessions(context.Context) (model.SessionIndex, error) {
	b := model.NewSessionIndexBuilder()
	for name := range m.files {
		if addr, ok := model.ParseObjectName(name); ok {
			b.Add(addr)
		}
	}
	return b.Build(), nil
}

func (m *memSource) OpenLines(ctx context.Context, addr model.Address) (source.LineIterator, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	if m.openErr != nil {
		return nil, m.openErr
	}
	lines, ok := m.files[addr.ObjectName()]
	if !ok {
		return source.Empty(), nil
	}
	m.opened++
	return &memLines{ctx: ctx, src: m, lines: lines, pos: -1}, nil
}

type memLines struct {
	ctx    context.Context
	src    *memSource
	lines  []string
	pos    int
	err    error
	closed bool
}

func (l *memLines) Next() bool {
	if l.closed || l.err != nil {
		return false
	}
	if err := l.ctx.Err(); err != nil {
		l.err = err
		return false
	}
	if l.pos+1 >= len(l.lines) {
		l.err = l.src.readErr
		return false
	}
	l.pos++
	l.src.read++
	return true
}

func (l *memLines) Line() string { return l.lines[l.pos] }
func (l *memLines) Err() error   { return l.err }

func (l *memLines) Close() error {
	if !l.closed {
		l.closed = true
		l.src.closed++
	}
	return nil
}

// failOn fails decryption for lines containing marker.
type failOn struct{ marker string }

func (f failOn) Decrypt(_ context.Context, line string) (string, error) {
	if strings.Contains(line, f.marker) {
		return "", fmt.Errorf("%w: bad token", decrypt.ErrDecrypt)
	}
	return line, nil
}
