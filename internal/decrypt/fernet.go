package decrypt

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
)

// EnvelopeTag prefixes the encrypted payload inside a log line:
//
//	2024-01-01T00:00:00Z v1:gAAAAAB... [status:200]
//
// Timestamp and status tags stay in clear text so lines can still be
// located without decrypting; only the payload after the tag is a token.
const EnvelopeTag = "v1:"

var envelopeRe = regexp.MustCompile(`(^|\s)v1:(\S+)`)

// Fernet decrypts payload envelopes with a local key ring.
// The first key is the primary one; the rest are accepted for rotation.
// Every v1: envelope must hold a token: a file mixing sealed lines with
// plain "v1:{json}" payloads fails on the first plain one.
type Fernet struct {
	keys []*fernet.Key
}

// NewFernet parses base64url encoded 32-byte keys.
func NewFernet(encoded ...string) (*Fernet, error) {
	var cleaned []string
	for _, k := range encoded {
		if k = strings.TrimSpace(k); k != "" {
			cleaned = append(cleaned, k)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("fernet: no keys configured")
	}
	keys, err := fernet.DecodeKeys(cleaned...)
	if err != nil {
		return nil, fmt.Errorf("fernet: decode keys: %w", err)
	}
	return &Fernet{keys: keys}, nil
}

// Decrypt replaces every v1:<token> envelope with its plaintext.
// Lines without an envelope (banners, plain text lines) pass through.
func (f *Fernet) Decrypt(_ context.Context, line string) (string, error) {
	if !strings.Contains(line, EnvelopeTag) {
		return line, nil
	}

	var failed string
	out := envelopeRe.ReplaceAllStringFunc(line, func(m string) string {
		sub := envelopeRe.FindStringSubmatch(m)
		msg := fernet.VerifyAndDecrypt([]byte(sub[2]), 0*time.Second, f.keys)
		if msg == nil {
			if failed == "" {
				failed = sub[2]
			}
			return m
		}
		return sub[1] + EnvelopeTag + string(msg)
	})
	if failed != "" {
		return "", fmt.Errorf("%w: invalid token %q", ErrDecrypt, abbreviate(failed))
	}
	return out, nil
}

// Seal wraps plaintext into an envelope using the primary key.
// Used by the demo data generator.
func (f *Fernet) Seal(plaintext string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plaintext), f.keys[0])
	if err != nil {
		return "", fmt.Errorf("fernet: encrypt: %w", err)
	}
	return EnvelopeTag + string(tok), nil
}

func abbreviate(s string) string {
	if len(s) > 16 {
		return s[:16] + "..."
	}
	return s
}
