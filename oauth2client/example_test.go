package oauth2client_test

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/AmmannChristian/go-spauth/oauth2client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024

var (
	bufListener = bufconn.Listen(bufSize)
	bufServer   = grpc.NewServer()
	bufOnce     sync.Once
)

func startBufServer() {
	bufOnce.Do(func() {
		go func() {
			_ = bufServer.Serve(bufListener)
		}()
	})
}

func dialBufConn(opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	startBufServer()

	dialOpts := []grpc.DialOption{
		grpc.WithContextDialer(func(c context.Context, _ string) (net.Conn, error) {
			select {
			case <-c.Done():
				return nil, c.Err()
			default:
			}
			return bufListener.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}

	dialOpts = append(dialOpts, opts...)
	return grpc.NewClient("bufnet", dialOpts...)
}

func newTokenEndpoint() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "example-token", "token_type": "Bearer", "expires_in": 3600}`))
	}))
}

// Example demonstrates basic usage of TokenManager with gRPC interceptors.
func Example() {
	ctx := context.Background()

	tm := oauth2client.NewTokenManager(
		ctx,
		"https://dbc-1234.cloud.databricks.com/oidc/v1/token",
		"client-id",
		"client-secret",
		"sql",
	)

	conn, err := dialBufConn(
		grpc.WithUnaryInterceptor(tm.UnaryClientInterceptor()),
		grpc.WithStreamInterceptor(tm.StreamClientInterceptor()),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	fmt.Println("gRPC client configured with OAuth2 authentication")
	// Output: gRPC client configured with OAuth2 authentication
}

// ExampleTokenManager_GetTokenWithContext fetches a token once and serves it from cache afterwards.
func ExampleTokenManager_GetTokenWithContext() {
	server := newTokenEndpoint()
	defer server.Close()

	tm := oauth2client.NewTokenManager(
		context.Background(),
		server.URL,
		"client-id",
		"client-secret",
		"sql",
		oauth2client.WithRefreshMargin(time.Minute),
		oauth2client.WithRequestTimeout(5*time.Second),
	)

	token, err := tm.GetTokenWithContext(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(token)
	// Output: example-token
}

// ExampleTokenManager_Token plugs the manager into golang.org/x/oauth2 as a TokenSource.
func ExampleTokenManager_Token() {
	server := newTokenEndpoint()
	defer server.Close()

	tm := oauth2client.NewTokenManager(context.Background(), server.URL, "client-id", "client-secret", "sql")

	token, err := tm.Token()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(token.Type(), token.AccessToken)
	// Output: Bearer example-token
}
