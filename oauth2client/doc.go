// Package oauth2client provides an OAuth2 client-credentials token manager.
//
// TokenManager caches bearer tokens and refreshes them before expiry. A cached
// token is valid while now < expiry - refresh margin; outside that window the
// next caller performs a synchronous refresh while holding the manager's lock,
// so concurrent callers never issue duplicate token requests.
//
// # Features
//
//   - Client-credentials flow with caching and early refresh (default margin 60s)
//   - Bounded token requests (default timeout 10s) that honor caller contexts
//   - Failed refreshes leave the previously cached token untouched
//   - Typed errors: ConfigurationError and AuthenticationError
//   - oauth2.TokenSource implementation for golang.org/x/oauth2 interop
//   - gRPC unary and stream client interceptors that inject Bearer tokens
//   - Optional logging (WithLogger, WithLoggingEnabled)
//
// # Quick Start
//
//	tm := oauth2client.NewTokenManager(
//	    ctx,
//	    "https://dbc-1234.cloud.databricks.com/oidc/v1/token",
//	    "client-id",
//	    "client-secret",
//	    "sql",
//	    oauth2client.WithRefreshMargin(time.Minute),
//	    oauth2client.WithLoggingEnabled(),
//	)
//
//	token, err := tm.GetTokenWithContext(ctx)
//
// # Token Response Handling
//
// expires_in may be a JSON number or a numeric string; when absent or not numeric,
// 3600 seconds are assumed. The computed lifetime is never shorter than the refresh
// margin plus one second, so a freshly fetched token is always usable at least once.
package oauth2client
