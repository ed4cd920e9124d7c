package serviceprincipal

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AmmannChristian/go-spauth/endpoint"
	"github.com/AmmannChristian/go-spauth/oauth2client"
	"golang.org/x/oauth2"
	"google.golang.org/grpc/credentials"
)

// AuthType identifies this provider to drivers that log or switch on the auth mechanism.
const AuthType = "databricks-service-principal"

// ConfigurationError is returned for missing inputs and hosts without known OAuth endpoints.
type ConfigurationError = oauth2client.ConfigurationError

// AuthenticationError is returned when discovery or a token exchange fails.
type AuthenticationError = oauth2client.AuthenticationError

// DefaultScopes are requested when no scopes are configured.
var DefaultScopes = []string{"sql"}

type config struct {
	scopes         []string
	refreshMargin  time.Duration
	requestTimeout time.Duration
	httpClient     *http.Client
	now            func() time.Time
	logger         oauth2client.Logger
	useAzureAuth   bool
}

// Option configures a Provider.
type Option func(*config)

// WithScopes overrides DefaultScopes. An empty list keeps the defaults.
func WithScopes(scopes ...string) Option {
	return func(c *config) {
		c.scopes = scopes
	}
}

// WithRefreshMargin sets how long before expiry tokens are renewed (default 60s).
func WithRefreshMargin(margin time.Duration) Option {
	return func(c *config) {
		c.refreshMargin = margin
	}
}

// WithRequestTimeout bounds the discovery request and every token request (default 10s).
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.requestTimeout = timeout
	}
}

// WithHTTPClient sets the HTTP client used for discovery and token requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// WithClock replaces the wall clock used for token expiry bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithLogger logs token refreshes through logger.
func WithLogger(logger oauth2client.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithAzureAuth authenticates Azure workspaces against Entra ID instead of the workspace.
func WithAzureAuth() Option {
	return func(c *config) {
		c.useAzureAuth = true
	}
}

// Provider performs the OAuth client-credentials flow for a workspace service principal.
// It is safe for concurrent use; all token state lives in the owned TokenManager.
type Provider struct {
	hostname        string
	clientID        string
	scopes          []string
	openIDConfigURL string
	metadata        ServerMetadata
	tokens          *oauth2client.TokenManager
}

var _ credentials.PerRPCCredentials = (*Provider)(nil)

// New creates a Provider and resolves the workspace token endpoint.
//
// Parameters:
//   - ctx: Context for the discovery request; its values (e.g. oauth2.HTTPClient) are kept for token requests
//   - hostname: Workspace host, with or without "https://" (e.g., "dbc-1234.cloud.databricks.com")
//   - clientID: Service principal application ID
//   - clientSecret: Service principal OAuth secret
//   - opts: Optional configuration options
//
// Returns a *ConfigurationError for missing inputs or hosts without known OAuth endpoints,
// and an *AuthenticationError when the OAuth configuration cannot be loaded or lacks a
// token endpoint.
func New(ctx context.Context, hostname, clientID, clientSecret string, opts ...Option) (*Provider, error) {
	if strings.TrimSpace(hostname) == "" {
		return nil, &ConfigurationError{Field: "server_hostname", Msg: "server_hostname is required"}
	}
	if clientID == "" {
		return nil, &ConfigurationError{Field: "client_id", Msg: "client_id is required"}
	}
	if clientSecret == "" {
		return nil, &ConfigurationError{Field: "client_secret", Msg: "client_secret is required"}
	}

	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config{
		refreshMargin:  oauth2client.DefaultRefreshMargin,
		requestTimeout: oauth2client.DefaultRequestTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.requestTimeout <= 0 {
		cfg.requestTimeout = oauth2client.DefaultRequestTimeout
	}
	if cfg.httpClient == nil {
		if client, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok && client != nil {
			cfg.httpClient = client
		} else {
			cfg.httpClient = http.DefaultClient
		}
	}

	normalized := endpoint.NormalizeHostname(hostname)
	collection, ok := endpoint.Lookup(normalized, cfg.useAzureAuth)
	if !ok {
		return nil, &ConfigurationError{
			Field: "server_hostname",
			Msg:   fmt.Sprintf("unable to determine OAuth endpoints for host %s", hostname),
		}
	}

	scopes := cfg.scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	p := &Provider{
		hostname:        normalized,
		clientID:        clientID,
		scopes:          collection.ScopesMapping(scopes),
		openIDConfigURL: collection.OpenIDConfigURL(normalized),
	}

	if err := p.discover(ctx, cfg.httpClient, cfg.requestTimeout); err != nil {
		return nil, err
	}

	tmOpts := []oauth2client.Option{
		oauth2client.WithRefreshMargin(cfg.refreshMargin),
		oauth2client.WithRequestTimeout(cfg.requestTimeout),
		oauth2client.WithHTTPClient(cfg.httpClient),
		oauth2client.WithClock(cfg.now),
	}
	if cfg.logger != nil {
		tmOpts = append(tmOpts, oauth2client.WithLogger(cfg.logger))
	}

	p.tokens = oauth2client.NewTokenManager(
		ctx,
		p.metadata.TokenEndpoint,
		clientID,
		clientSecret,
		strings.Join(p.scopes, " "),
		tmOpts...,
	)

	return p, nil
}

// discover loads the OAuth configuration document and records the token endpoint.
func (p *Provider) discover(ctx context.Context, client *http.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var metadata ServerMetadata
	if err := LoadMetadata(ctx, client, p.openIDConfigURL, &metadata); err != nil {
		return &AuthenticationError{Msg: "serviceprincipal: failed to load OAuth configuration", Err: err}
	}
	if metadata.TokenEndpoint == "" {
		return &AuthenticationError{Msg: "serviceprincipal: OAuth configuration did not include a token endpoint"}
	}

	p.metadata = metadata
	return nil
}

// AuthType returns "databricks-service-principal".
func (p *Provider) AuthType() string {
	return AuthType
}

// Hostname returns the normalized "https://host" form of the workspace host.
func (p *Provider) Hostname() string {
	return p.hostname
}

// ClientID returns the service principal application ID.
func (p *Provider) ClientID() string {
	return p.clientID
}

// Scopes returns the scopes sent to the token endpoint.
func (p *Provider) Scopes() []string {
	out := make([]string, len(p.scopes))
	copy(out, p.scopes)
	return out
}

// OpenIDConfigURL returns the discovery document URL used at construction.
func (p *Provider) OpenIDConfigURL() string {
	return p.openIDConfigURL
}

// TokenEndpoint returns the discovered token endpoint.
func (p *Provider) TokenEndpoint() string {
	return p.metadata.TokenEndpoint
}

// Metadata returns the discovered OAuth server metadata.
func (p *Provider) Metadata() ServerMetadata {
	return p.metadata
}

// TokenManager exposes the underlying token cache, e.g. for gRPC interceptors or oauth2 interop.
func (p *Provider) TokenManager() *oauth2client.TokenManager {
	return p.tokens
}

// Headers returns the Authorization header for the current token, refreshing it if needed.
func (p *Provider) Headers(ctx context.Context) (map[string]string, error) {
	token, err := p.tokens.GetTokenWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + token}, nil
}

// HeaderFactory returns a function producing {"Authorization": "Bearer <token>"}.
// Drivers call it once per outgoing request; tokens are served from cache while valid.
func (p *Provider) HeaderFactory() func() (map[string]string, error) {
	return func() (map[string]string, error) {
		return p.Headers(context.Background())
	}
}

// Authenticate sets the Authorization header on r using r's context for any token refresh.
func (p *Provider) Authenticate(r *http.Request) error {
	token, err := p.tokens.GetTokenWithContext(r.Context())
	if err != nil {
		return err
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (p *Provider) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	token, err := p.tokens.GetTokenWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"authorization": "Bearer " + token}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials; bearer tokens need TLS.
func (p *Provider) RequireTransportSecurity() bool {
	return true
}
