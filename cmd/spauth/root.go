package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/AmmannChristian/go-spauth/connargs"
	"github.com/AmmannChristian/go-spauth/serviceprincipal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Exit codes.
const (
	exitCodeSuccess = 0
	// exitCodeError indicates a general failure (bad flags, I/O).
	exitCodeError = 1
	// exitCodeConfig indicates missing or invalid credentials or connection arguments.
	exitCodeConfig = 2
	// exitCodeAuth indicates discovery or the token request failed.
	exitCodeAuth = 3
)

type rootOptions struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "spauth",
		Short: "Service principal OAuth helper for workspaces",
		Long: `spauth discovers workspace OAuth endpoints, obtains service principal
access tokens and expands connection URLs into connection arguments.

Credentials are read from flags, then the DATABRICKS_SERVER_HOSTNAME,
DATABRICKS_CLIENT_ID and DATABRICKS_CLIENT_SECRET environment variables,
then the YAML file given with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML file with server_hostname, client_id, client_secret and scopes")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log token refreshes to stderr")

	cmd.AddCommand(
		newDiscoverCmd(opts),
		newTokenCmd(opts),
		newConnargsCmd(opts),
	)

	return cmd
}

// providerOptions returns the serviceprincipal options shared by all commands.
func (o *rootOptions) providerOptions(cmd *cobra.Command, cfg *config) []serviceprincipal.Option {
	var opts []serviceprincipal.Option
	if cfg != nil {
		opts = append(opts, cfg.providerOptions()...)
	}
	if o.verbose {
		opts = append(opts, serviceprincipal.WithLogger(log.New(cmd.ErrOrStderr(), "spauth: ", log.LstdFlags)))
	}
	return opts
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitCode(err)
	}
	return exitCodeSuccess
}

// exitCode maps typed errors to semantic exit codes for scripting.
func exitCode(err error) int {
	var argErr *connargs.ArgumentError
	if errors.As(err, &argErr) {
		return exitCodeConfig
	}

	var cfgErr *serviceprincipal.ConfigurationError
	if errors.As(err, &cfgErr) {
		return exitCodeConfig
	}

	var authErr *serviceprincipal.AuthenticationError
	if errors.As(err, &authErr) {
		return exitCodeAuth
	}

	return exitCodeError
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return enc.Close()
}
