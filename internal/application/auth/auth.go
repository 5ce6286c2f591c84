// Package auth is the single place where the storefront decides whether a caller may
// mutate a cart or start a checkout.
package auth

import (
	"context"
	"errors"
)

var ErrUnauthorized = errors.New("auth: login required")

// Authorizer is consulted once per mutating operation.
type Authorizer interface {
	IsAuthorized(ctx context.Context) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context) bool

func (f AuthorizerFunc) IsAuthorized(ctx context.Context) bool { return f(ctx) }

// TokenVerifier validates a bearer credential and returns the subject it belongs to.
// Issuing credentials is handled elsewhere.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (subject string, ok bool)
}

type subjectKey struct{}

// WithSubject marks ctx as belonging to an authenticated subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// Subject returns the authenticated subject carried by ctx.
func Subject(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok && s != ""
}

// ContextAuthorizer authorizes requests whose context carries a subject.
type ContextAuthorizer struct{}

func (ContextAuthorizer) IsAuthorized(ctx context.Context) bool {
	_, ok := Subject(ctx)
	return ok
}
