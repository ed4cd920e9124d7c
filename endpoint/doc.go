// Package endpoint resolves the OAuth endpoints of a Databricks workspace from its hostname.
//
// Workspaces on AWS and GCP, and Azure workspaces not using Entra ID, publish an
// OAuth authorization server metadata document under "/oidc". Lookup picks the
// right Collection for a host; unknown hosts are reported so callers can fail
// with a configuration error instead of guessing.
//
// # Quick Start
//
//	coll, ok := endpoint.Lookup("dbc-1234.cloud.databricks.com", false)
//	if !ok {
//	    log.Fatal("not a workspace host")
//	}
//	metadataURL := coll.OpenIDConfigURL("dbc-1234.cloud.databricks.com")
//	// https://dbc-1234.cloud.databricks.com/oidc/.well-known/oauth-authorization-server
package endpoint
