package oauth2client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	// DefaultRefreshMargin is how long before expiry a cached token is renewed.
	DefaultRefreshMargin = 60 * time.Second
	// DefaultRequestTimeout bounds every token request.
	DefaultRequestTimeout = 10 * time.Second
	// DefaultExpiresIn is assumed when the token response has no usable expires_in.
	DefaultExpiresIn = 3600

	maxResponseSize = 1 << 20

	// maxExpiresIn is the largest lifetime in seconds that fits a time.Duration.
	maxExpiresIn = math.MaxInt64 / int64(time.Second)
)

// Logger is an interface for optional logging in TokenManager.
// Implementations can log token refresh events if desired.
type Logger interface {
	Printf(format string, args ...any)
}

// TokenManager manages OAuth2 tokens with automatic refresh.
// It uses the client credentials flow and is safe for concurrent access.
//
// A single mutex guards the whole check-refresh-read sequence, so at most one
// token request is in flight per manager.
type TokenManager struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scopes       []string

	httpClient     *http.Client
	ctx            context.Context // fallback context for GetToken and Token
	refreshMargin  time.Duration
	requestTimeout time.Duration
	now            func() time.Time
	logger         Logger // optional logger

	mu    sync.Mutex
	token *oauth2.Token
}

var _ oauth2.TokenSource = (*TokenManager)(nil)

// Option is a functional option for configuring TokenManager.
type Option func(*TokenManager)

// WithLogger sets a custom logger for token refresh events.
// If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(tm *TokenManager) {
		tm.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
// This is a convenience option that sets the logger to log.Default().
func WithLoggingEnabled() Option {
	return func(tm *TokenManager) {
		tm.logger = log.Default()
	}
}

// WithRefreshMargin sets how long before expiry the token is renewed.
// Negative values are treated as zero.
func WithRefreshMargin(margin time.Duration) Option {
	return func(tm *TokenManager) {
		if margin < 0 {
			margin = 0
		}
		tm.refreshMargin = margin
	}
}

// WithRequestTimeout bounds each token request. Non-positive values keep the default.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(tm *TokenManager) {
		if timeout > 0 {
			tm.requestTimeout = timeout
		}
	}
}

// WithHTTPClient sets the HTTP client used for token requests.
func WithHTTPClient(client *http.Client) Option {
	return func(tm *TokenManager) {
		if client != nil {
			tm.httpClient = client
		}
	}
}

// WithClock replaces the wall clock used for expiry bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(tm *TokenManager) {
		if now != nil {
			tm.now = now
		}
	}
}

// NewTokenManager creates a new OAuth2 token manager using client credentials flow.
//
// Parameters:
//   - ctx: Context for token requests (used as fallback when callers pass none)
//   - tokenURL: OAuth2 token endpoint (e.g., "https://dbc.cloud.databricks.com/oidc/v1/token")
//   - clientID: OAuth2 client identifier
//   - clientSecret: OAuth2 client secret
//   - scopes: Space-separated list of OAuth2 scopes (e.g., "sql offline_access")
//   - opts: Optional configuration options
//
// If no HTTP client is configured, the one stored in ctx under oauth2.HTTPClient is
// used, falling back to http.DefaultClient.
func NewTokenManager(ctx context.Context, tokenURL, clientID, clientSecret, scopes string, opts ...Option) *TokenManager {
	// Keep token requests independent from caller cancellations while preserving values.
	if ctx == nil {
		ctx = context.Background()
	} else {
		ctx = context.WithoutCancel(ctx)
	}

	tm := &TokenManager{
		tokenURL:       tokenURL,
		clientID:       clientID,
		clientSecret:   clientSecret,
		scopes:         strings.Fields(scopes),
		ctx:            ctx,
		refreshMargin:  DefaultRefreshMargin,
		requestTimeout: DefaultRequestTimeout,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(tm)
	}

	if tm.httpClient == nil {
		if client, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok && client != nil {
			tm.httpClient = client
		} else {
			tm.httpClient = http.DefaultClient
		}
	}

	return tm
}

// GetTokenWithContext returns a valid access token, fetching or refreshing if necessary.
// The request context bounds the token request together with the request timeout.
// On failure the previously cached token, if any, is kept.
func (tm *TokenManager) GetTokenWithContext(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = tm.ctx
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.tokenValid() {
		return tm.token.AccessToken, nil
	}

	token, err := tm.fetchToken(ctx)
	if err != nil {
		return "", err
	}
	tm.token = token

	if tm.logger != nil {
		if sub := tokenSubject(token.AccessToken); sub != "" {
			tm.logger.Printf("oauth2client: obtained new access token for %s (expires: %s)", sub, token.Expiry.Format(time.RFC3339))
		} else {
			tm.logger.Printf("oauth2client: obtained new access token (expires: %s)", token.Expiry.Format(time.RFC3339))
		}
	}

	return token.AccessToken, nil
}

// GetToken returns a valid access token using the manager's fallback context.
func (tm *TokenManager) GetToken() (string, error) {
	return tm.GetTokenWithContext(tm.ctx)
}

// Token implements oauth2.TokenSource.
func (tm *TokenManager) Token() (*oauth2.Token, error) {
	if _, err := tm.GetTokenWithContext(tm.ctx); err != nil {
		return nil, err
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.token == nil {
		return nil, &AuthenticationError{Msg: "oauth2client: token was invalidated concurrently"}
	}
	copied := *tm.token
	return &copied, nil
}

// Invalidate drops the cached token so that the next call fetches a new one.
// Transports call it after a resource server rejects the token.
func (tm *TokenManager) Invalidate() {
	tm.mu.Lock()
	tm.token = nil
	tm.mu.Unlock()
}

// tokenValid reports whether the cached token is usable: now < expiry - margin.
// Callers must hold tm.mu.
func (tm *TokenManager) tokenValid() bool {
	if tm.token == nil || tm.token.AccessToken == "" {
		return false
	}
	return tm.now().Before(tm.token.Expiry.Add(-tm.refreshMargin))
}

type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   json.RawMessage `json:"expires_in"`
}

// fetchToken performs the client-credentials exchange. It never touches the cache.
func (tm *TokenManager) fetchToken(ctx context.Context) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, tm.requestTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", tm.clientID)
	form.Set("client_secret", tm.clientSecret)
	form.Set("scope", strings.Join(tm.scopes, " "))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthenticationError{Msg: "oauth2client: failed to create token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return nil, &AuthenticationError{Msg: "oauth2client: failed to retrieve OAuth token", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &AuthenticationError{Msg: "oauth2client: failed to read token response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AuthenticationError{
			Msg: "oauth2client: failed to retrieve OAuth token",
			Err: fmt.Errorf("token endpoint returned status %d", resp.StatusCode),
		}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &AuthenticationError{Msg: "oauth2client: invalid token response", Err: err}
	}
	if parsed.AccessToken == "" {
		return nil, &AuthenticationError{Msg: "oauth2client: OAuth response did not include an access token"}
	}

	// The margin window must never exceed the token's own lifetime.
	lifetime := time.Duration(parseExpiresIn(parsed.ExpiresIn)) * time.Second
	if floor := tm.refreshMargin + time.Second; lifetime < floor {
		lifetime = floor
	}

	tokenType := parsed.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return &oauth2.Token{
		AccessToken: parsed.AccessToken,
		TokenType:   tokenType,
		Expiry:      tm.now().Add(lifetime),
	}, nil
}

// parseExpiresIn accepts a JSON number or a numeric string and falls back to
// DefaultExpiresIn for anything else. Results are clamped to +/-maxExpiresIn.
func parseExpiresIn(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return DefaultExpiresIn
	}

	var value any
	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	decoder.UseNumber()
	if err := decoder.Decode(&value); err != nil {
		return DefaultExpiresIn
	}

	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return clampExpiresIn(n)
		}
		if f, err := v.Float64(); err == nil || errors.Is(err, strconv.ErrRange) {
			switch {
			case math.IsNaN(f):
				return DefaultExpiresIn
			case f >= float64(maxExpiresIn):
				return maxExpiresIn
			case f <= -float64(maxExpiresIn):
				return -maxExpiresIn
			}
			return int64(f)
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil || errors.Is(err, strconv.ErrRange) {
			return clampExpiresIn(n)
		}
	}
	return DefaultExpiresIn
}

func clampExpiresIn(n int64) int64 {
	if n > maxExpiresIn {
		return maxExpiresIn
	}
	if n < -maxExpiresIn {
		return -maxExpiresIn
	}
	return n
}

// tokenSubject returns the sub claim of a JWT access token without verifying it.
// Opaque tokens yield an empty string.
func tokenSubject(accessToken string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// UnaryClientInterceptor returns a gRPC unary client interceptor that automatically
// adds OAuth2 Bearer tokens to request metadata.
//
// If token fetch fails, the RPC call is aborted with an error.
func (tm *TokenManager) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		token, err := tm.GetTokenWithContext(ctx)
		if err != nil {
			return fmt.Errorf("oauth2client: failed to get token: %w", err)
		}

		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that automatically
// adds OAuth2 Bearer tokens to request metadata.
func (tm *TokenManager) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		token, err := tm.GetTokenWithContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("oauth2client: failed to get token: %w", err)
		}

		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)

		return streamer(ctx, desc, cc, method, opts...)
	}
}
