// Package session exposes the caller's identity session to the rest of the
// client pipeline. Tokens are short-lived: consumers must ask for the
// current token immediately before each request instead of holding a copy.
package session

import "context"

// TokenProvider yields the current bearer token, or an empty string when no
// session exists.
type TokenProvider interface {
	CurrentToken(ctx context.Context) (string, error)
}

// TokenProviderFunc adapts a function to the TokenProvider interface.
type TokenProviderFunc func(ctx context.Context) (string, error)

func (f TokenProviderFunc) CurrentToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static returns a provider with a fixed token. Intended for tests and
// one-shot CLI invocations.
func Static(token string) TokenProvider {
	return TokenProviderFunc(func(context.Context) (string, error) {
		return token, nil
	})
}
