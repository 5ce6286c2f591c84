// Package auth verifies bearer tokens against a configured allow-list.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

const defaultSubject = "user"

var ErrInvalidTokenEntry = errors.New("auth: invalid token entry")

// StaticVerifier accepts a fixed set of tokens. Entries are "subject=token" or a bare
// token, which authenticates as "user".
type StaticVerifier struct {
	tokens map[string]string // token -> subject
}

func NewStaticVerifier(entries []string) (*StaticVerifier, error) {
	v := &StaticVerifier{tokens: make(map[string]string, len(entries))}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		subject, token, ok := strings.Cut(e, "=")
		if !ok {
			subject, token = defaultSubject, e
		}
		subject, token = strings.TrimSpace(subject), strings.TrimSpace(token)
		if subject == "" || token == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTokenEntry, e)
		}
		v.tokens[token] = subject
	}
	return v, nil
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (string, bool) {
	if token == "" {
		return "", false
	}
	for known, subject := range v.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return subject, true
		}
	}
	return "", false
}
