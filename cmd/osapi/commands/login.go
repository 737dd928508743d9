package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

type loginOptions struct {
	username          string
	password          string
	userDomainName    string
	projectName       string
	projectID         string
	projectDomainName string
	region            string
}

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	opts := &loginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to an OpenStack cloud",
		Long: `Authenticate against the identity service given by --auth-url (or the
configured auth_url), store the connection settings in the config file and
the issued token in the token cache. The password is never stored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			if config.AuthURL == "" {
				return constants.ErrNoEndpointConfigured
			}

			opts.apply(config)

			reader := bufio.NewReader(cmd.InOrStdin())

			if config.Username == "" {
				username, err := prompt(cmd.OutOrStdout(), reader, "Username: ")
				if err != nil {
					return err
				}

				config.Username = username
			}

			password := opts.password
			if password == "" {
				password = viper.GetString(passwordKey)
			}

			if password == "" {
				var err error

				password, err = promptPassword(cmd.OutOrStdout(), reader)
				if err != nil {
					return err
				}
			}

			// Login always selects the identity method.
			config.Endpoint = ""

			client, closeClient, err := createClientFromConfig(cmd.Context(), config, password)
			if err != nil {
				return err
			}
			defer closeClient()

			token, err := client.Token(cmd.Context())
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			err = persistLogin(config)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Successfully logged in to %s as %s\n", config.AuthURL, config.Username)

			if token.Expires() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Token expires at %s\n", token.ExpiresAt.UTC().Format(time.RFC3339))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&opts.userDomainName, "user-domain-name", "", "domain of the user (default \"Default\")")
	cmd.Flags().StringVar(&opts.projectName, "project-name", "", "project to scope the token to")
	cmd.Flags().StringVar(&opts.projectID, "project-id", "", "project ID to scope the token to")
	cmd.Flags().StringVar(&opts.projectDomainName, "project-domain-name", "", "domain of the project (default \"Default\")")
	cmd.Flags().StringVar(&opts.region, "region", "", "region used for endpoint lookups")

	return cmd
}

func (o *loginOptions) apply(config *Config) {
	overrides := map[*string]string{
		&config.Username:          o.username,
		&config.UserDomainName:    o.userDomainName,
		&config.ProjectName:       o.projectName,
		&config.ProjectID:         o.projectID,
		&config.ProjectDomainName: o.projectDomainName,
		&config.Region:            o.region,
	}

	for field, value := range overrides {
		if value != "" {
			*field = value
		}
	}
}

// persistLogin writes the connection settings of config into the config
// file, leaving unrelated keys untouched.
func persistLogin(config *Config) error {
	saved, err := readConfigFile()
	if err != nil {
		return err
	}

	saved.Endpoint = ""
	saved.AuthURL = config.AuthURL
	saved.Username = config.Username
	saved.UserDomainName = config.UserDomainName
	saved.ProjectName = config.ProjectName
	saved.ProjectID = config.ProjectID
	saved.ProjectDomainName = config.ProjectDomainName
	saved.Region = config.Region

	return saveConfig(saved)
}

func prompt(out io.Writer, reader *bufio.Reader, label string) (string, error) {
	_, _ = fmt.Fprint(out, label)

	line, err := reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo from a terminal, or a plain line
// otherwise.
func promptPassword(out io.Writer, reader *bufio.Reader) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return prompt(out, reader, "Password: ")
	}

	_, _ = fmt.Fprint(out, "Password: ")

	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	_, _ = fmt.Fprintln(out)

	return string(bytePassword), nil
}
