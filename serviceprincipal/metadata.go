package serviceprincipal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxMetadataSize = 1 << 20

// ServerMetadata holds the fields of an OAuth authorization server metadata
// (RFC 8414) or OpenID configuration document that the provider cares about.
type ServerMetadata struct {
	Issuer                string   `json:"issuer"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	JWKSURI               string   `json:"jwks_uri"`
	ScopesSupported       []string `json:"scopes_supported"`
	GrantTypesSupported   []string `json:"grant_types_supported"`
}

// LoadMetadata fetches metadataURL with a GET request and decodes the JSON body into target.
// Bodies larger than 1 MiB are truncated, which makes them fail to decode.
func LoadMetadata(ctx context.Context, client *http.Client, metadataURL string, target any) error {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return fmt.Errorf("metadata request (url=%s): %w", metadataURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("metadata fetch (url=%s): %w", metadataURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize))
	if err != nil {
		return fmt.Errorf("metadata read (url=%s): %w", metadataURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("metadata fetch (url=%s): status %d", metadataURL, resp.StatusCode)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("metadata parse (url=%s): %w", metadataURL, err)
	}
	return nil
}
