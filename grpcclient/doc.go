// Package grpcclient builds gRPC client connections authenticated as a workspace service principal.
//
// WithServicePrincipal discovers the workspace token endpoint in Build and
// installs the serviceprincipal.Provider as per-RPC credentials, so every call
// carries "authorization: Bearer <token>". Per-RPC credentials require
// transport security; TLS 1.2+ with system roots is the default.
//
// # Quick Start
//
//	conn, err := grpcclient.NewBuilder().
//	    WithServicePrincipal("dbc-1234.cloud.databricks.com", clientID, clientSecret,
//	        serviceprincipal.WithScopes("sql")).
//	    Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
// Without WithAddress the connection targets the workspace host on port 443.
// WithTokenManager attaches an existing oauth2client.TokenManager through
// client interceptors instead.
package grpcclient
