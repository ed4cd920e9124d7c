package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/AmmannChristian/go-spauth/oauth2client"
	"github.com/AmmannChristian/go-spauth/serviceprincipal"
)

// DefaultTimeout is the request timeout of clients built without WithTimeout.
const DefaultTimeout = 30 * time.Second

// Builder provides a fluent interface for constructing HTTP clients
// with optional service principal authentication and TLS/mTLS support.
type Builder struct {
	// OAuth2 configuration
	tokenSource TokenSource
	provider    *serviceprincipal.Provider
	err         error

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsSkipVerify bool

	// HTTP client configuration
	timeout         time.Duration
	baseTransport   http.RoundTripper
	followRedirects bool
}

// NewBuilder creates a new HTTP client builder.
func NewBuilder() *Builder {
	return &Builder{
		timeout:         DefaultTimeout,
		followRedirects: true,
	}
}

// WithTokenSource sets the source of Bearer tokens injected into every request.
func (b *Builder) WithTokenSource(ts TokenSource) *Builder {
	b.tokenSource = ts
	return b
}

// WithTokenManager is WithTokenSource for an oauth2client.TokenManager.
func (b *Builder) WithTokenManager(tm *oauth2client.TokenManager) *Builder {
	if tm == nil {
		b.tokenSource = nil
		return b
	}
	return b.WithTokenSource(tm)
}

// WithServicePrincipal authenticates requests as a service principal of the
// workspace at host. The token endpoint is discovered immediately; a failure is
// reported by Build.
//
// Parameters:
//   - ctx: Context for discovery and token requests
//   - host: Workspace hostname (e.g., "dbc-1234.cloud.databricks.com")
//   - clientID: Service principal application ID
//   - clientSecret: Service principal OAuth secret
//   - opts: serviceprincipal options such as WithScopes or WithRefreshMargin
func (b *Builder) WithServicePrincipal(ctx context.Context, host, clientID, clientSecret string, opts ...serviceprincipal.Option) *Builder {
	provider, err := serviceprincipal.New(ctx, host, clientID, clientSecret, opts...)
	if err != nil {
		b.err = err
		return b
	}
	b.provider = provider
	b.tokenSource = provider.TokenManager()
	return b
}

// Provider returns the service principal configured by WithServicePrincipal, if any.
func (b *Builder) Provider() *serviceprincipal.Provider {
	return b.provider
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
func (b *Builder) WithTLS(caFile, certFile, keyFile string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	return b
}

// WithInsecureSkipVerify disables TLS certificate verification (NOT RECOMMENDED for production).
// This should only be used for testing or development purposes.
func (b *Builder) WithInsecureSkipVerify() *Builder {
	b.tlsSkipVerify = true
	return b
}

// WithTimeout sets the request timeout for the HTTP client.
// Default is 30 seconds if not specified.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithBaseTransport sets a custom base transport.
// This is useful for adding custom middleware or using a custom connection pool.
func (b *Builder) WithBaseTransport(transport http.RoundTripper) *Builder {
	b.baseTransport = transport
	return b
}

// WithoutRedirects disables automatic redirect following.
// By default, the client follows up to 10 redirects.
func (b *Builder) WithoutRedirects() *Builder {
	b.followRedirects = false
	return b
}

// Build constructs the HTTP client with the configured options.
//
// Returns:
//   - *http.Client: Configured HTTP client
//   - error: Error from WithServicePrincipal, or if the TLS configuration is invalid
func (b *Builder) Build() (*http.Client, error) {
	if b.err != nil {
		return nil, fmt.Errorf("httpclient: service principal: %w", b.err)
	}

	transport := b.baseTransport
	if transport == nil {
		var err error
		transport, err = b.defaultTransport()
		if err != nil {
			return nil, err
		}
	}

	// Wrap with OAuth2 transport if a token source is set
	if b.tokenSource != nil {
		transport = NewOAuth2Transport(b.tokenSource, transport)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   b.timeout,
	}

	if !b.followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}

// defaultTransport clones http.DefaultTransport with the configured TLS settings.
func (b *Builder) defaultTransport() (http.RoundTripper, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		// Whatever default transport is configured (e.g., a test stub)
		return http.DefaultTransport, nil
	}

	cloned := base.Clone()
	if b.tlsEnabled || b.tlsSkipVerify {
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
		}
		cloned.TLSClientConfig = tlsConfig
	} else {
		cloned.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}
	return cloned, nil
}

// buildTLSConfig constructs the TLS configuration for the HTTP client.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: b.tlsSkipVerify, // #nosec G402
	}

	if b.tlsCAFile != "" {
		caCert, err := os.ReadFile(b.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = certPool
	}

	// Client certificate for mTLS requires both cert and key
	if b.tlsCertFile != "" && b.tlsKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if b.tlsCertFile != "" || b.tlsKeyFile != "" {
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	return tlsConfig, nil
}

// NewHTTPClient is a convenience function that creates a simple HTTP client
// authenticated by ts. For more configuration options, use Builder instead.
//
// Example:
//
//	provider, err := serviceprincipal.New(ctx, host, clientID, clientSecret)
//	client := httpclient.NewHTTPClient(provider.TokenManager())
//	resp, err := client.Get("https://" + host + "/api/2.0/clusters/list")
func NewHTTPClient(ts TokenSource) *http.Client {
	return &http.Client{
		Transport: NewOAuth2Transport(ts, nil),
		Timeout:   DefaultTimeout,
	}
}
