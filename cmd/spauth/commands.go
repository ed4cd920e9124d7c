package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/AmmannChristian/go-spauth/connargs"
	"github.com/AmmannChristian/go-spauth/endpoint"
	"github.com/AmmannChristian/go-spauth/oauth2client"
	"github.com/AmmannChristian/go-spauth/serviceprincipal"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

type discoverOutput struct {
	Host             string `yaml:"host"`
	Cloud            string `yaml:"cloud"`
	OpenIDConfigURL  string `yaml:"openid_config_url"`
	AuthorizationURL string `yaml:"authorization_url"`
	Issuer           string `yaml:"issuer,omitempty"`
	TokenEndpoint    string `yaml:"token_endpoint"`
}

func newDiscoverCmd(root *rootOptions) *cobra.Command {
	flags := &credentialFlags{}

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Print the OAuth endpoints of a workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.resolve(cmd, flags)
			if err != nil {
				return err
			}
			if cfg.ServerHostname == "" {
				return &serviceprincipal.ConfigurationError{Field: "server_hostname", Msg: "server_hostname is required"}
			}

			host := endpoint.NormalizeHostname(cfg.ServerHostname)
			collection, ok := endpoint.Lookup(host, cfg.AzureAuth)
			if !ok {
				return &serviceprincipal.ConfigurationError{
					Field: "server_hostname",
					Msg:   fmt.Sprintf("unable to determine OAuth endpoints for host %s", cfg.ServerHostname),
				}
			}

			timeout := cfg.RequestTimeout
			if timeout <= 0 {
				timeout = oauth2client.DefaultRequestTimeout
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out := discoverOutput{
				Host:             host,
				Cloud:            endpoint.InferCloud(host).String(),
				OpenIDConfigURL:  collection.OpenIDConfigURL(host),
				AuthorizationURL: collection.AuthorizationURL(host),
			}

			var metadata serviceprincipal.ServerMetadata
			if err := serviceprincipal.LoadMetadata(ctx, contextClient(ctx), out.OpenIDConfigURL, &metadata); err != nil {
				return &serviceprincipal.AuthenticationError{Msg: "spauth: failed to load OAuth configuration", Err: err}
			}
			out.Issuer = metadata.Issuer
			out.TokenEndpoint = metadata.TokenEndpoint

			return writeYAML(cmd.OutOrStdout(), out)
		},
	}

	flags.bindHost(cmd)
	return cmd
}

func newTokenCmd(root *rootOptions) *cobra.Command {
	flags := &credentialFlags{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain an access token and print the Authorization header value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.resolve(cmd, flags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			provider, err := serviceprincipal.New(ctx, cfg.ServerHostname, cfg.ClientID, cfg.ClientSecret,
				root.providerOptions(cmd, cfg)...)
			if err != nil {
				return err
			}

			headers, err := provider.Headers(ctx)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), headers["Authorization"])
			return err
		},
	}

	flags.bindHost(cmd)
	flags.bindCredentials(cmd)
	return cmd
}

// connargsOutput is connargs.Args plus the public service principal details.
type connargsOutput struct {
	connargs.Args `yaml:",inline"`

	ClientID      string   `yaml:"client_id,omitempty"`
	TokenEndpoint string   `yaml:"token_endpoint,omitempty"`
	Scopes        []string `yaml:"scopes,omitempty"`
}

func newConnargsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "connargs URL",
		Short: "Expand a connection URL into connection arguments (secrets redacted)",
		Long: `connargs parses a connection URL such as

  databricks://token:<access-token>@<host>?http_path=<path>
  databricks://<client-id>:<client-secret>@<host>?http_path=<path>&authentication=service_principal

and prints the resulting connection arguments as YAML. Service principal
URLs perform endpoint discovery; no token is requested.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The URL carries every setting; only the logger is added.
			built, err := connargs.ParseAndBuild(cmd.Context(), args[0], root.providerOptions(cmd, nil)...)
			if err != nil {
				return err
			}

			out := connargsOutput{Args: built.Redacted()}
			if p := built.CredentialsProvider; p != nil {
				out.ClientID = p.ClientID()
				out.TokenEndpoint = p.TokenEndpoint()
				out.Scopes = p.Scopes()
			}
			return writeYAML(cmd.OutOrStdout(), out)
		},
	}
}

// contextClient returns the *http.Client stored under oauth2.HTTPClient, or http.DefaultClient.
func contextClient(ctx context.Context) *http.Client {
	if client, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok && client != nil {
		return client
	}
	return http.DefaultClient
}
