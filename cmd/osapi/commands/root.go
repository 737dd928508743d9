package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand creates the osapi command tree with its global flags bound
// to viper.
func NewRootCommand(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "osapi",
		Short: "OpenStack API CLI",
		Long: `A command-line interface for OpenStack clouds.

Authenticates against the identity (Keystone v3) service, resolves service
endpoints from the catalog and gives typed access to compute servers and
flavors. Settings come from ~/.osapi/config.yml, OSAPI_* environment
variables and flags, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.osapi/config.yml)")
	flags.StringP("endpoint", "e", "", "fixed service endpoint, skips authentication")
	flags.String("auth-url", "", "identity service URL")
	flags.StringP("output", "o", "table", "output format (table, json, yaml)")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.String("token-cache", "", "token cache backend (file, memory, nats, none)")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("endpoint", flags.Lookup("endpoint"))
	_ = viper.BindPFlag("auth_url", flags.Lookup("auth-url"))
	_ = viper.BindPFlag("output", flags.Lookup("output"))
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("token_cache", flags.Lookup("token-cache"))

	rootCmd.AddCommand(NewVersionCommand(version, commit, date))
	rootCmd.AddCommand(NewLoginCommand())
	rootCmd.AddCommand(NewTokenCommand())
	rootCmd.AddCommand(NewEndpointCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewServersCommand())
	rootCmd.AddCommand(NewFlavorsCommand())

	return rootCmd
}
