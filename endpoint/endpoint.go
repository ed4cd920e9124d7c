package endpoint

import (
	"net/url"
	"strings"
)

// Cloud identifies the hosting cloud of a workspace.
type Cloud int

const (
	// Unknown is returned for hosts that do not belong to a known workspace domain.
	Unknown Cloud = iota
	// AWS workspaces (including the development and GovCloud domains).
	AWS
	// Azure workspaces.
	Azure
	// GCP workspaces.
	GCP
)

// String returns the lowercase cloud name.
func (c Cloud) String() string {
	switch c {
	case AWS:
		return "aws"
	case Azure:
		return "azure"
	case GCP:
		return "gcp"
	default:
		return "unknown"
	}
}

var (
	awsDomains   = []string{".cloud.databricks.com", ".cloud.databricks.us", ".dev.databricks.com"}
	azureDomains = []string{".azuredatabricks.net", ".databricks.azure.cn", ".databricks.azure.us"}
	gcpDomains   = []string{".gcp.databricks.com"}
)

const httpsScheme = "https://"

// NormalizeHostname returns host in canonical "https://host" form without a trailing slash.
func NormalizeHostname(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, httpsScheme)
	return httpsScheme + strings.TrimRight(host, "/")
}

// BareHostname strips the scheme, path and trailing slashes from host,
// keeping an explicit port.
func BareHostname(host string) string {
	host = strings.TrimSpace(host)
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil && u.Host != "" {
			return u.Host
		}
	}
	if i := strings.Index(host, "/"); i >= 0 {
		host = host[:i]
	}
	return host
}

// InferCloud maps a workspace host to the cloud it runs on.
func InferCloud(host string) Cloud {
	name := strings.ToLower(BareHostname(host))
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[:i]
	}
	switch {
	case hasAnySuffix(name, awsDomains):
		return AWS
	case hasAnySuffix(name, azureDomains):
		return Azure
	case hasAnySuffix(name, gcpDomains):
		return GCP
	default:
		return Unknown
	}
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Lookup returns the endpoint collection serving host.
// Azure workspaces use the workspace's own OIDC endpoints unless useAzureAuth is set.
// The second return value is false when the host is not a recognized workspace.
func Lookup(host string, useAzureAuth bool) (Collection, bool) {
	switch InferCloud(host) {
	case AWS, GCP:
		return InHouse{}, true
	case Azure:
		if useAzureAuth {
			return AzureAD{}, true
		}
		return InHouse{}, true
	default:
		return nil, false
	}
}

// oidcURL returns the workspace OIDC base URL for host.
func oidcURL(host string) string {
	return NormalizeHostname(host) + "/oidc"
}
