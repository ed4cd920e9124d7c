// Package httpclient builds HTTP clients that call a workspace as a service principal.
//
// The Builder wraps a transport with OAuth2Transport, which injects a Bearer
// token from any TokenSource (usually the TokenManager of a
// serviceprincipal.Provider). When the server rejects a token with 401, the
// cached token is invalidated and a replayable request is retried once.
//
// # Features
//
//   - Service principal authentication with endpoint discovery
//   - TLS 1.2+ by default, with custom CA/mTLS and optional InsecureSkipVerify
//   - Custom timeouts, base transport override, and redirect disabling
//
// # Quick Start
//
//	client, err := httpclient.NewBuilder().
//	    WithServicePrincipal(ctx, "dbc-1234.cloud.databricks.com", clientID, clientSecret).
//	    WithTimeout(60 * time.Second).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Get("https://dbc-1234.cloud.databricks.com/api/2.0/clusters/list")
//
// # Manual Transport Wrapping
//
//	transport := httpclient.NewOAuth2Transport(provider.TokenManager(), nil)
//	client := &http.Client{Transport: transport}
package httpclient
