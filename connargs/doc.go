// Package connargs turns a connection URL into driver connection arguments.
//
//	databricks://token:<personal-access-token>@<host>?http_path=<path>&catalog=<c>&schema=<s>
//	databricks://<client-id>:<client-secret>@<host>?http_path=<path>&authentication=service_principal
//
// With authentication=service_principal the arguments carry a
// serviceprincipal.Provider instead of an access token. The optional query
// parameters scope, refresh_margin and request_timeout (seconds) tune the
// provider; other unknown parameters are passed through in Args.Extra.
package connargs
