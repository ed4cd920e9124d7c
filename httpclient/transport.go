package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// TokenSource supplies bearer tokens. *oauth2client.TokenManager implements it.
type TokenSource interface {
	GetTokenWithContext(ctx context.Context) (string, error)
}

// invalidator is implemented by token sources that can drop a cached token.
type invalidator interface {
	Invalidate()
}

// OAuth2Transport is an http.RoundTripper that adds OAuth2 Bearer tokens to
// outgoing HTTP requests.
//
// When the server answers 401 and the token source can invalidate its cache,
// the request is retried once with a freshly fetched token, provided its body
// can be replayed.
type OAuth2Transport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// TokenSource provides OAuth2 access tokens.
	TokenSource TokenSource
}

// RoundTrip implements http.RoundTripper.
func (t *OAuth2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.TokenSource == nil {
		return nil, errors.New("httpclient: TokenSource is nil")
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := t.send(base, req, req.Body)
	if err != nil {
		return nil, err
	}

	inv, ok := t.TokenSource.(invalidator)
	if resp.StatusCode != http.StatusUnauthorized || !ok || !replayable(req) {
		return resp, nil
	}

	body := req.Body
	if req.GetBody != nil {
		body, err = req.GetBody()
		if err != nil {
			return resp, nil
		}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	inv.Invalidate()
	return t.send(base, req, body)
}

// send clones req with the current token and body, then delegates to base.
func (t *OAuth2Transport) send(base http.RoundTripper, req *http.Request, body io.ReadCloser) (*http.Response, error) {
	token, err := t.TokenSource.GetTokenWithContext(req.Context())
	if err != nil {
		return nil, fmt.Errorf("httpclient: failed to get token: %w", err)
	}

	// Clone the request to avoid modifying the original
	reqClone := req.Clone(req.Context())
	reqClone.Body = body
	reqClone.Header.Set("Authorization", "Bearer "+token)

	return base.RoundTrip(reqClone)
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// NewOAuth2Transport creates a new OAuth2Transport with the given token source.
// The base transport defaults to http.DefaultTransport if not specified.
func NewOAuth2Transport(ts TokenSource, base http.RoundTripper) *OAuth2Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &OAuth2Transport{
		Base:        base,
		TokenSource: ts,
	}
}
