package commands //nolint:testpackage // Need access to internal types

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// findSubcommand finds a subcommand by name within a cobra command.
func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return c
		}
	}

	return nil
}

// cliHome is a config file location shared by consecutive command runs.
type cliHome struct {
	dir        string
	configFile string
	input      string
}

func newCLIHome(t *testing.T) *cliHome {
	t.Helper()

	dir := t.TempDir()

	return &cliHome{dir: dir, configFile: filepath.Join(dir, "config.yml")}
}

func (h *cliHome) write(t *testing.T, config *Config) {
	t.Helper()

	data, err := yaml.Marshal(config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(h.configFile, data, 0o600))
}

func (h *cliHome) tokenFile() string {
	return filepath.Join(h.dir, "tokens.yml")
}

func (h *cliHome) saved(t *testing.T) *Config {
	t.Helper()

	data, err := os.ReadFile(h.configFile)
	require.NoError(t, err)

	config := &Config{}
	require.NoError(t, yaml.Unmarshal(data, config))

	return config
}

// run executes the root command the way main does, with viper reset and
// pointed at the home's config file. Tests using it must not run in parallel.
func (h *cliHome) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.SetConfigFile(h.configFile)

	_, err := os.Stat(h.configFile)
	if err == nil {
		require.NoError(t, viper.ReadInConfig())
	}

	root := NewRootCommand("1.2.3", "abc123", "2024-01-01")

	var out bytes.Buffer

	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(h.input))
	root.SetArgs(args)

	err = root.ExecuteContext(context.Background())

	return out.String(), err
}
