// Package testutil provides test helpers for go-spauth packages.
//
// It includes utilities to spin up IPv4-only local HTTP servers (avoiding IPv6 in sandboxes),
// mock workspace OAuth endpoints without real sockets, a manually advanced clock, and
// self-signed certificates for TLS/mTLS tests.
//
// # Utilities
//
//   - NewLocalHTTPServer: start httptest server bound to 127.0.0.1
//   - MockOAuth2Server, NewMockWorkspace: stub discovery and token endpoints and capture requests
//   - StaticJSONResponse, SequentialJSONResponses, JSONResponse, TokenJSON: canned responses
//   - FakeClock: controllable time source for expiry tests
//   - SignedTestJWT: JWT-shaped access tokens
//   - WriteTestCACert / WriteTestCertAndKey: generate temporary CA and leaf certificates for tests
//
// These helpers are designed for tests and may mutate http.DefaultClient/Transport; they restore previous values via tb.Cleanup.
package testutil
