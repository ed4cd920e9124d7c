package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/AmmannChristian/go-spauth/serviceprincipal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted when the matching flag is not set.
const (
	envServerHostname = "DATABRICKS_SERVER_HOSTNAME"
	envClientID       = "DATABRICKS_CLIENT_ID"
	envClientSecret   = "DATABRICKS_CLIENT_SECRET"
)

// config is the resolved CLI configuration.
// Precedence per field: flag > env > config file.
type config struct {
	ServerHostname string         `yaml:"server_hostname"`
	ClientID       string         `yaml:"client_id"`
	ClientSecret   string         `yaml:"client_secret"`
	Scopes         []string       `yaml:"scopes"`
	AzureAuth      bool           `yaml:"azure_auth"`
	RefreshMargin  *time.Duration `yaml:"refresh_margin"`
	RequestTimeout time.Duration  `yaml:"request_timeout"`
}

// loadConfigFile reads a YAML config file. An empty path yields an empty config.
func loadConfigFile(path string) (*config, error) {
	cfg := &config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *config) applyEnv() {
	if v := os.Getenv(envServerHostname); v != "" {
		c.ServerHostname = v
	}
	if v := os.Getenv(envClientID); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv(envClientSecret); v != "" {
		c.ClientSecret = v
	}
}

func (c *config) providerOptions() []serviceprincipal.Option {
	var opts []serviceprincipal.Option
	if len(c.Scopes) > 0 {
		opts = append(opts, serviceprincipal.WithScopes(c.Scopes...))
	}
	if c.AzureAuth {
		opts = append(opts, serviceprincipal.WithAzureAuth())
	}
	// nil means the key is absent; an explicit 0s disables early refresh.
	if c.RefreshMargin != nil {
		opts = append(opts, serviceprincipal.WithRefreshMargin(*c.RefreshMargin))
	}
	if c.RequestTimeout > 0 {
		opts = append(opts, serviceprincipal.WithRequestTimeout(c.RequestTimeout))
	}
	return opts
}

// credentialFlags holds the values of the workspace and credential flags.
// Only flags registered on a command are applied.
type credentialFlags struct {
	host         string
	clientID     string
	clientSecret string
	scopes       []string
	azure        bool
	timeout      time.Duration
}

func (f *credentialFlags) bindHost(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.host, "host", "", "Workspace hostname (env "+envServerHostname+")")
	cmd.Flags().BoolVar(&f.azure, "azure", false, "Authenticate Azure workspaces against Entra ID")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Discovery and token request timeout (default 10s)")
}

func (f *credentialFlags) bindCredentials(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.clientID, "client-id", "", "Service principal application ID (env "+envClientID+")")
	cmd.Flags().StringVar(&f.clientSecret, "client-secret", "", "Service principal OAuth secret (env "+envClientSecret+")")
	cmd.Flags().StringSliceVar(&f.scopes, "scope", nil, "OAuth scopes (default sql)")
}

func (f *credentialFlags) apply(cmd *cobra.Command, c *config) {
	changed := cmd.Flags().Changed
	if changed("host") {
		c.ServerHostname = f.host
	}
	if changed("client-id") {
		c.ClientID = f.clientID
	}
	if changed("client-secret") {
		c.ClientSecret = f.clientSecret
	}
	if changed("scope") {
		c.Scopes = f.scopes
	}
	if changed("azure") {
		c.AzureAuth = f.azure
	}
	if changed("timeout") {
		c.RequestTimeout = f.timeout
	}
}

// resolve merges the config file, the environment and the command's flags.
func (o *rootOptions) resolve(cmd *cobra.Command, flags *credentialFlags) (*config, error) {
	cfg, err := loadConfigFile(o.configFile)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if flags != nil {
		flags.apply(cmd, cfg)
	}
	return cfg, nil
}
