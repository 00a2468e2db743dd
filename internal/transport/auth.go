package transport

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/agentstation/orgsync/pkg/errors"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request) error
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request) error {
	return nil
}

// TokenAuth sets a bearer token from an oauth2.TokenSource plus any static
// headers the platform requires alongside it.
type TokenAuth struct {
	System  string
	Method  string
	Source  oauth2.TokenSource
	Headers map[string]string
}

// NewTokenAuth wraps source in an oauth2.ReuseTokenSource and fetches the
// first token immediately, so bad credentials fail at construction rather
// than on the first API call.
func NewTokenAuth(system, method string, source oauth2.TokenSource, headers map[string]string) (*TokenAuth, error) {
	a := &TokenAuth{
		System:  system,
		Method:  method,
		Source:  oauth2.ReuseTokenSource(nil, source),
		Headers: headers,
	}
	if _, err := a.token(); err != nil {
		return nil, err
	}
	return a, nil
}

// Apply implements the Authenticator interface for TokenAuth. An expired
// token is refreshed transparently by the underlying source.
func (a *TokenAuth) Apply(req *http.Request) error {
	tok, err := a.token()
	if err != nil {
		return err
	}
	tok.SetAuthHeader(req)
	for k, v := range a.Headers {
		req.Header.Set(k, v)
	}
	return nil
}

func (a *TokenAuth) token() (*oauth2.Token, error) {
	tok, err := a.Source.Token()
	if err != nil {
		var authErr *errors.AuthenticationError
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		return nil, errors.NewAuthenticationError(a.System, a.Method, "failed to obtain access token", err)
	}
	if !tok.Valid() {
		return nil, errors.NewAuthenticationError(a.System, a.Method, "token endpoint returned an empty or expired token", nil)
	}
	return tok, nil
}

// contextWithHTTPClient makes oauth2 token exchanges use client.
func contextWithHTTPClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}
