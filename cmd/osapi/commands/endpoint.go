package commands

import (
	"fmt"
	"strings"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/spf13/cobra"
)

// EndpointInfo is the structured output of endpoint.
type EndpointInfo struct {
	ServiceType string `json:"service_type" yaml:"service_type"`
	URL         string `json:"url"          yaml:"url"`
}

// NewEndpointCommand creates the endpoint command.
func NewEndpointCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "endpoint SERVICE_TYPE",
		Short: "Resolve a service endpoint",
		Long: `Resolve the endpoint of a service type from the service catalog, honouring
the configured region and interface, e.g.
  osapi endpoint compute`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serviceType := strings.TrimSpace(args[0])
			if serviceType == "" {
				return constants.ErrServiceTypeMissing
			}

			format, err := outputFormat()
			if err != nil {
				return err
			}

			client, closeClient, err := createClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeClient()

			endpoint, err := client.Endpoint(cmd.Context(), serviceType)
			if err != nil {
				return fmt.Errorf("failed to resolve endpoint: %w", err)
			}

			info := EndpointInfo{ServiceType: serviceType, URL: endpoint.String()}

			if format != constants.FormatTable {
				return writeStructured(cmd.OutOrStdout(), format, info)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), info.URL)

			return nil
		},
	}
}
