// Package decrypt turns a stored log line into plaintext before it is
// parsed and filtered.
//
// Implementations are picked once at startup from configuration and shared
// by every request, so they must be safe for concurrent use.
package decrypt

import (
	"context"
	"errors"
)

// ErrDecrypt marks a line whose payload could not be decrypted.
// Callers abort the whole read when they see it; the line is never skipped.
var ErrDecrypt = errors.New("decrypt log line")

// Decryptor is invoked once per raw line, in storage order.
type Decryptor interface {
	Decrypt(ctx context.Context, line string) (string, error)
}

// Nop returns every line unchanged.
type Nop struct{}

func (Nop) Decrypt(_ context.Context, line string) (string, error) {
	return line, nil
}
