package commands

import (
	"fmt"
	"time"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// TokenInfo is the structured output of token issue.
type TokenInfo struct {
	Token     string `json:"token"                yaml:"token"`
	ExpiresAt string `json:"expires_at"           yaml:"expires_at"`
	ExpiresIn string `json:"expires_in,omitempty" yaml:"expires_in,omitempty"`
}

// NewTokenCommand creates the token command group.
func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage authentication tokens",
		Long:  "Issue and inspect authentication tokens",
	}

	cmd.AddCommand(newTokenIssueCommand())

	return cmd
}

func newTokenIssueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "issue",
		Short: "Issue a token",
		Long:  "Print a valid token for the configured cloud, reusing the cached token while it is valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}

			client, closeClient, err := createClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeClient()

			token, err := client.Token(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}

			info := TokenInfo{Token: token.Value, ExpiresAt: constants.Never}
			if token.Expires() {
				info.ExpiresAt = token.ExpiresAt.UTC().Format(time.RFC3339)
				info.ExpiresIn = time.Until(token.ExpiresAt).Round(time.Second).String()
			}

			if format != constants.FormatTable {
				return writeStructured(cmd.OutOrStdout(), format, info)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Property", "Value")

			_ = table.Append([]string{"Token", info.Token})
			_ = table.Append([]string{"Expires At", info.ExpiresAt})

			if info.ExpiresIn != "" {
				_ = table.Append([]string{"Expires In", info.ExpiresIn})
			}

			return renderTable(table)
		},
	}
}
