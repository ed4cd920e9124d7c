package grpcclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/AmmannChristian/go-spauth/endpoint"
	"github.com/AmmannChristian/go-spauth/oauth2client"
	"github.com/AmmannChristian/go-spauth/serviceprincipal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// defaultPort is appended to workspace hosts when no address is configured.
const defaultPort = "443"

// servicePrincipal holds the arguments of WithServicePrincipal until Build.
type servicePrincipal struct {
	host         string
	clientID     string
	clientSecret string
	opts         []serviceprincipal.Option
}

// Builder provides a fluent interface for constructing gRPC client connections
// authenticated as a workspace service principal, with TLS/mTLS support.
type Builder struct {
	address string

	// Authentication: at most one of these is used, servicePrincipal first.
	servicePrincipal *servicePrincipal
	tokenManager     *oauth2client.TokenManager
	provider         *serviceprincipal.Provider

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsServerName string

	// Additional dial options
	dialOpts []grpc.DialOption
}

// NewBuilder creates a new gRPC client builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithAddress sets the server address (e.g., "dbc-1234.cloud.databricks.com:443").
// When unset, the service principal's workspace host on port 443 is used.
func (b *Builder) WithAddress(address string) *Builder {
	b.address = address
	return b
}

// WithServicePrincipal authenticates every RPC as a service principal of the
// workspace at host. Endpoint discovery runs in Build.
func (b *Builder) WithServicePrincipal(host, clientID, clientSecret string, opts ...serviceprincipal.Option) *Builder {
	b.servicePrincipal = &servicePrincipal{
		host:         host,
		clientID:     clientID,
		clientSecret: clientSecret,
		opts:         opts,
	}
	return b
}

// WithTokenManager attaches Bearer tokens from tm through client interceptors.
// Unlike WithServicePrincipal this does not require transport security.
func (b *Builder) WithTokenManager(tm *oauth2client.TokenManager) *Builder {
	b.tokenManager = tm
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
//   - serverName: Expected server name for TLS verification (optional, overrides SNI)
func (b *Builder) WithTLS(caFile, certFile, keyFile, serverName string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	b.tlsServerName = serverName
	return b
}

// WithDialOptions adds custom gRPC dial options.
// These options are applied after authentication and TLS options.
func (b *Builder) WithDialOptions(opts ...grpc.DialOption) *Builder {
	b.dialOpts = append(b.dialOpts, opts...)
	return b
}

// Provider returns the service principal created by the last successful Build, if any.
func (b *Builder) Provider() *serviceprincipal.Provider {
	return b.provider
}

// Build constructs the gRPC client connection with the configured options.
// The connection itself is established lazily by grpc.
//
// Returns:
//   - *grpc.ClientConn: gRPC connection
//   - error: *serviceprincipal.ConfigurationError or *serviceprincipal.AuthenticationError
//     from WithServicePrincipal, or an error if TLS or the address is invalid
func (b *Builder) Build(ctx context.Context) (*grpc.ClientConn, error) {
	address := b.address
	if address == "" && b.servicePrincipal != nil {
		address = workspaceAddress(b.servicePrincipal.host)
	}
	if address == "" {
		return nil, errors.New("grpcclient: server address is required")
	}

	var opts []grpc.DialOption

	switch {
	case b.servicePrincipal != nil:
		sp := b.servicePrincipal
		provider, err := serviceprincipal.New(ctx, sp.host, sp.clientID, sp.clientSecret, sp.opts...)
		if err != nil {
			return nil, fmt.Errorf("grpcclient: service principal: %w", err)
		}
		b.provider = provider
		opts = append(opts, grpc.WithPerRPCCredentials(provider))
	case b.tokenManager != nil:
		opts = append(opts,
			grpc.WithUnaryInterceptor(b.tokenManager.UnaryClientInterceptor()),
			grpc.WithStreamInterceptor(b.tokenManager.StreamClientInterceptor()),
		)
	}

	if b.tlsEnabled {
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("grpcclient: TLS config failed: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	} else {
		// TLS with system roots unless a dial option overrides it.
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})))
	}

	opts = append(opts, b.dialOpts...)

	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: dial failed: %w", err)
	}

	return conn, nil
}

// workspaceAddress returns host:port for a workspace hostname, defaulting to port 443.
func workspaceAddress(host string) string {
	bare := endpoint.BareHostname(host)
	if bare == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(bare); err == nil {
		return bare
	}
	return net.JoinHostPort(bare, defaultPort)
}

// buildTLSConfig constructs the TLS configuration for the gRPC connection.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: b.tlsServerName,
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
