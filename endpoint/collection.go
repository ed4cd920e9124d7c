package endpoint

// Collection describes where a workspace publishes its OAuth endpoints and how
// requested scopes translate to the identity provider's scopes.
type Collection interface {
	// ScopesMapping translates requested scopes to the identity provider's scope names.
	ScopesMapping(scopes []string) []string
	// AuthorizationURL returns the authorization endpoint for host.
	AuthorizationURL(host string) string
	// OpenIDConfigURL returns the OpenID/OAuth metadata document URL for host.
	OpenIDConfigURL(host string) string
}

// InHouse serves workspaces whose tokens are issued by the workspace itself.
type InHouse struct{}

var _ Collection = InHouse{}

// ScopesMapping returns scopes unchanged.
func (InHouse) ScopesMapping(scopes []string) []string {
	mapped := make([]string, len(scopes))
	copy(mapped, scopes)
	return mapped
}

// AuthorizationURL implements Collection.
func (InHouse) AuthorizationURL(host string) string {
	return oidcURL(host) + "/oauth2/v2.0/authorize"
}

// OpenIDConfigURL implements Collection.
func (InHouse) OpenIDConfigURL(host string) string {
	return oidcURL(host) + "/.well-known/oauth-authorization-server"
}

// AzureDatabricksAppID is the Entra ID application of the Azure Databricks resource.
const AzureDatabricksAppID = "2ff814a6-3304-4ab8-85cb-cd0e6f879c1d"

const offlineAccessScope = "offline_access"

// AzureAD serves Azure workspaces authenticating against Entra ID.
// AppID overrides AzureDatabricksAppID when set.
type AzureAD struct {
	AppID string
}

var _ Collection = AzureAD{}

// ScopesMapping maps every workspace scope onto the Azure Databricks
// user_impersonation scope and keeps offline_access when requested.
func (a AzureAD) ScopesMapping(scopes []string) []string {
	appID := a.AppID
	if appID == "" {
		appID = AzureDatabricksAppID
	}

	mapped := []string{appID + "/user_impersonation"}
	for _, scope := range scopes {
		if scope == offlineAccessScope {
			mapped = append(mapped, offlineAccessScope)
			break
		}
	}
	return mapped
}

// AuthorizationURL goes through the workspace, which redirects to the tenant's endpoint.
func (AzureAD) AuthorizationURL(host string) string {
	return oidcURL(host) + "/oauth2/v2.0/authorize"
}

// OpenIDConfigURL implements Collection.
func (AzureAD) OpenIDConfigURL(string) string {
	return "https://login.microsoftonline.com/organizations/v2.0/.well-known/openid-configuration"
}
