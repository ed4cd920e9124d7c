package httpclient_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/AmmannChristian/go-spauth/httpclient"
	"github.com/AmmannChristian/go-spauth/oauth2client"
	"github.com/AmmannChristian/go-spauth/serviceprincipal"
)

const tokenURL = "https://dbc-1234.cloud.databricks.com/oidc/v1/token"

// Example demonstrates basic HTTP client usage with a token manager.
func Example() {
	tm := oauth2client.NewTokenManager(context.Background(), tokenURL, "client-id", "client-secret", "sql")

	client := httpclient.NewHTTPClient(tm)

	fmt.Printf("HTTP client created with timeout: %v\n", client.Timeout)
	// Output: HTTP client created with timeout: 30s
}

// ExampleNewBuilder demonstrates using the builder pattern for HTTP clients.
func ExampleNewBuilder() {
	tm := oauth2client.NewTokenManager(context.Background(), tokenURL, "client-id", "secret", "sql")

	client, err := httpclient.NewBuilder().
		WithTokenManager(tm).
		WithTimeout(60 * time.Second).
		WithoutRedirects().
		Build()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Client configured with timeout: %v\n", client.Timeout)
	// Output: Client configured with timeout: 1m0s
}

// ExampleBuilder_WithServicePrincipal shows how configuration errors surface from Build.
func ExampleBuilder_WithServicePrincipal() {
	_, err := httpclient.NewBuilder().
		WithServicePrincipal(context.Background(), "dbc-1234.cloud.databricks.com", "", "secret").
		Build()

	var cfgErr *serviceprincipal.ConfigurationError
	if errors.As(err, &cfgErr) {
		fmt.Println("missing", cfgErr.Field)
	}
	// Output: missing client_id
}

// ExampleBuilder_WithTLS demonstrates TLS configuration.
func ExampleBuilder_WithTLS() {
	_, err := httpclient.NewBuilder().
		WithTLS(
			"/path/to/ca.crt",     // CA certificate
			"/path/to/client.crt", // Client certificate (optional)
			"/path/to/client.key", // Client key (optional)
		).
		Build()
	if err != nil {
		// The files don't exist here
		fmt.Println("TLS configuration attempted")
		return
	}

	fmt.Println("TLS configured")
	// Output: TLS configuration attempted
}

// ExampleNewOAuth2Transport demonstrates creating a custom transport.
func ExampleNewOAuth2Transport() {
	tm := oauth2client.NewTokenManager(context.Background(), tokenURL, "client-id", "client-secret", "sql")

	transport := httpclient.NewOAuth2Transport(tm, nil)

	fmt.Printf("Transport type: %T\n", transport)
	// Output: Transport type: *httpclient.OAuth2Transport
}
