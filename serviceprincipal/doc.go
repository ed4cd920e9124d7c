// Package serviceprincipal authenticates SQL connections to a Databricks workspace
// with a service principal's OAuth client credentials.
//
// New validates the inputs, normalizes the workspace host, resolves the OAuth
// metadata URL through package endpoint and loads it once to find the token
// endpoint. Tokens are then obtained lazily through an oauth2client.TokenManager
// owned by the Provider: the first header request fetches a token, later ones
// reuse it until it enters the refresh margin.
//
// # Quick Start
//
//	p, err := serviceprincipal.New(ctx,
//	    "dbc-1234.cloud.databricks.com",
//	    os.Getenv("DATABRICKS_CLIENT_ID"),
//	    os.Getenv("DATABRICKS_CLIENT_SECRET"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	headers := p.HeaderFactory()
//	h, err := headers() // {"Authorization": "Bearer <token>"}
//
// A Provider also satisfies the driver-style Authenticate(*http.Request) hook and
// credentials.PerRPCCredentials for gRPC connections.
//
// # Errors
//
// *ConfigurationError is returned for missing inputs and unknown hosts, before any
// network traffic. *AuthenticationError is returned when discovery or a token
// exchange fails; nothing is retried internally.
package serviceprincipal
