package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const configDirName = ".osapi"

// Config represents the CLI configuration. Passwords are never persisted;
// tokens live in the token cache.
type Config struct {
	Endpoint          string `json:"endpoint,omitempty"            yaml:"endpoint,omitempty"`
	AuthURL           string `json:"auth_url,omitempty"            yaml:"auth_url,omitempty"`
	Username          string `json:"username,omitempty"            yaml:"username,omitempty"`
	UserDomainName    string `json:"user_domain_name,omitempty"    yaml:"user_domain_name,omitempty"`
	ProjectName       string `json:"project_name,omitempty"        yaml:"project_name,omitempty"`
	ProjectID         string `json:"project_id,omitempty"          yaml:"project_id,omitempty"`
	ProjectDomainName string `json:"project_domain_name,omitempty" yaml:"project_domain_name,omitempty"`
	Region            string `json:"region,omitempty"              yaml:"region,omitempty"`
	Interface         string `json:"interface,omitempty"           yaml:"interface,omitempty"`
	ComputeAPIVersion string `json:"compute_api_version,omitempty" yaml:"compute_api_version,omitempty"`
	Output            string `json:"output,omitempty"              yaml:"output,omitempty"`
	TokenCache        string `json:"token_cache,omitempty"         yaml:"token_cache,omitempty"`
	TokenCachePath    string `json:"token_cache_path,omitempty"    yaml:"token_cache_path,omitempty"`
	NATSURL           string `json:"nats_url,omitempty"            yaml:"nats_url,omitempty"`
}

type configKey struct {
	name  string
	field func(*Config) *string
	check func(string) error
}

// configKeys lists the settable keys in display order.
var configKeys = []configKey{
	{name: "endpoint", field: func(c *Config) *string { return &c.Endpoint }},
	{name: "auth_url", field: func(c *Config) *string { return &c.AuthURL }},
	{name: "username", field: func(c *Config) *string { return &c.Username }},
	{name: "user_domain_name", field: func(c *Config) *string { return &c.UserDomainName }},
	{name: "project_name", field: func(c *Config) *string { return &c.ProjectName }},
	{name: "project_id", field: func(c *Config) *string { return &c.ProjectID }},
	{name: "project_domain_name", field: func(c *Config) *string { return &c.ProjectDomainName }},
	{name: "region", field: func(c *Config) *string { return &c.Region }},
	{name: "interface", field: func(c *Config) *string { return &c.Interface }},
	{name: "compute_api_version", field: func(c *Config) *string { return &c.ComputeAPIVersion }},
	{name: "output", field: func(c *Config) *string { return &c.Output }, check: checkOutput},
	{name: "token_cache", field: func(c *Config) *string { return &c.TokenCache }, check: checkTokenCache},
	{name: "token_cache_path", field: func(c *Config) *string { return &c.TokenCachePath }},
	{name: "nats_url", field: func(c *Config) *string { return &c.NATSURL }},
}

func lookupConfigKey(name string) (configKey, error) {
	normalized := strings.ReplaceAll(strings.ToLower(name), "-", "_")

	for _, key := range configKeys {
		if key.name == normalized {
			return key, nil
		}
	}

	return configKey{}, fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, name)
}

func checkOutput(value string) error {
	if !slices.Contains([]string{constants.FormatTable, constants.FormatJSON, constants.FormatYAML}, value) {
		return fmt.Errorf("%w: %s", constants.ErrInvalidOutput, value)
	}

	return nil
}

func checkTokenCache(value string) error {
	switch osapi.CacheType(value) {
	case osapi.CacheTypeFile, osapi.CacheTypeMemory, osapi.CacheTypeNATS, osapi.CacheTypeNone:
		return nil
	default:
		return fmt.Errorf("%w: %s", osapi.ErrUnsupportedCacheType, value)
	}
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "View and modify the osapi CLI configuration",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long:  "Display the configuration merged from the config file, OSAPI_* environment variables and flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}

			config := loadConfig()

			return outputConfig(cmd.OutOrStdout(), format, config)
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration value in the config file. Keys: " + strings.Join(configKeyNames(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := lookupConfigKey(args[0])
			if err != nil {
				return err
			}

			value := args[1]
			if key.check != nil {
				err = key.check(value)
				if err != nil {
					return err
				}
			}

			config, err := readConfigFile()
			if err != nil {
				return err
			}

			*key.field(config) = value

			err = saveConfig(config)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key.name, value)

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a configuration value",
		Long:  "Remove a configuration value from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := lookupConfigKey(args[0])
			if err != nil {
				return err
			}

			config, err := readConfigFile()
			if err != nil {
				return err
			}

			*key.field(config) = ""

			err = saveConfig(config)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", key.name)

			return nil
		},
	}
}

func configKeyNames() []string {
	names := make([]string, 0, len(configKeys))
	for _, key := range configKeys {
		names = append(names, key.name)
	}

	return names
}

// loadConfig returns the effective configuration from viper.
func loadConfig() *Config {
	config := &Config{}
	for _, key := range configKeys {
		*key.field(config) = viper.GetString(key.name)
	}

	return config
}

// configFilePath returns the config file in use, or ~/.osapi/config.yml.
func configFilePath() (string, error) {
	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		return configFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, configDirName, "config.yml"), nil
}

// readConfigFile reads only the persisted settings; a missing file yields an
// empty configuration.
func readConfigFile() (*Config, error) {
	configFile, err := configFilePath()
	if err != nil {
		return nil, err
	}

	config := &Config{}

	// #nosec G304 -- path comes from --config or the user's home directory
	data, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config, nil
		}

		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
	}

	return config, nil
}

func saveConfig(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func outputConfig(w io.Writer, format string, config *Config) error {
	if format != constants.FormatTable {
		return writeStructured(w, format, config)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Key", "Value")

	for _, key := range configKeys {
		err := table.Append([]string{key.name, orNotAvailable(*key.field(config))})
		if err != nil {
			return fmt.Errorf("failed to append table row: %w", err)
		}
	}

	return renderTable(table)
}
