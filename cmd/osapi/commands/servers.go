package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/fivetwenty-io/osapi/pkg/compute"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// ServerRow is the structured output of servers list.
type ServerRow struct {
	ID   string `json:"id"   yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ServerDetail is the structured output of servers show.
type ServerDetail struct {
	ID         string                       `json:"id"                    yaml:"id"`
	Name       string                       `json:"name"                  yaml:"name"`
	Status     string                       `json:"status"                yaml:"status"`
	Created    string                       `json:"created"               yaml:"created"`
	Updated    string                       `json:"updated"               yaml:"updated"`
	TenantID   string                       `json:"tenant_id"             yaml:"tenant_id"`
	UserID     string                       `json:"user_id"               yaml:"user_id"`
	FlavorID   string                       `json:"flavor_id"             yaml:"flavor_id"`
	ImageID    string                       `json:"image_id"              yaml:"image_id"`
	AccessIPv4 string                       `json:"access_ipv4,omitempty" yaml:"access_ipv4,omitempty"`
	AccessIPv6 string                       `json:"access_ipv6,omitempty" yaml:"access_ipv6,omitempty"`
	Addresses  map[string][]compute.Address `json:"addresses,omitempty"   yaml:"addresses,omitempty"`
	Metadata   map[string]string            `json:"metadata,omitempty"    yaml:"metadata,omitempty"`
}

// NewServersCommand creates the servers command group.
func NewServersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "servers",
		Aliases: []string{"server"},
		Short:   "Manage compute servers",
		Long:    "List and inspect compute (Nova) servers",
	}

	cmd.AddCommand(newServersListCommand())
	cmd.AddCommand(newServersShowCommand())

	return cmd
}

func newServersListCommand() *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List servers",
		Long: `List servers visible to the current project.

Sort keys include display_name, created_at, vm_state and uuid, e.g.
  osapi servers list --sort display_name:asc --sort created_at:desc`,
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

			servers, err := fetchList(cmd.Context(), client.Servers().List(), opts, compute.ServerSummary.ID)
			if err != nil {
				return fmt.Errorf("failed to list servers: %w", err)
			}

			rows := make([]ServerRow, 0, len(servers))
			for _, server := range servers {
				rows = append(rows, ServerRow{ID: server.ID(), Name: server.Name()})
			}

			if format != constants.FormatTable {
				return writeStructured(cmd.OutOrStdout(), format, rows)
			}

			if len(rows) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No servers found")

				return nil
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("ID", "Name")

			for _, row := range rows {
				_ = table.Append([]string{row.ID, row.Name})
			}

			return renderTable(table)
		},
	}

	opts.addFlags(cmd)

	return cmd
}

func newServersShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show SERVER_ID",
		Short: "Show server details",
		Long:  "Display the full details of a server",
		Args:  cobra.ExactArgs(1),
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

			server, err := client.Servers().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get server: %w", err)
			}

			detail := ServerDetail{
				ID:         server.ID(),
				Name:       server.Name(),
				Status:     server.Status(),
				Created:    formatTime(server.Created()),
				Updated:    formatTime(server.Updated()),
				TenantID:   server.TenantID(),
				UserID:     server.UserID(),
				FlavorID:   server.FlavorID(),
				ImageID:    server.ImageID(),
				AccessIPv4: server.AccessIPv4(),
				AccessIPv6: server.AccessIPv6(),
				Addresses:  server.Addresses(),
				Metadata:   server.Metadata(),
			}

			if format != constants.FormatTable {
				return writeStructured(cmd.OutOrStdout(), format, detail)
			}

			return outputServerTable(cmd.OutOrStdout(), detail)
		},
	}
}

func outputServerTable(w io.Writer, detail ServerDetail) error {
	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")

	_ = table.Append([]string{"ID", detail.ID})
	_ = table.Append([]string{"Name", detail.Name})
	_ = table.Append([]string{"Status", orNotAvailable(detail.Status)})
	_ = table.Append([]string{"Created", detail.Created})
	_ = table.Append([]string{"Updated", detail.Updated})
	_ = table.Append([]string{"Project", orNotAvailable(detail.TenantID)})
	_ = table.Append([]string{"User", orNotAvailable(detail.UserID)})
	_ = table.Append([]string{"Flavor", orNotAvailable(detail.FlavorID)})
	_ = table.Append([]string{"Image", orNotAvailable(detail.ImageID)})
	_ = table.Append([]string{"Access IPv4", orNotAvailable(detail.AccessIPv4)})
	_ = table.Append([]string{"Access IPv6", orNotAvailable(detail.AccessIPv6)})
	_ = table.Append([]string{"Addresses", orNotAvailable(formatAddresses(detail.Addresses))})
	_ = table.Append([]string{"Metadata", orNotAvailable(formatMetadata(detail.Metadata))})

	return renderTable(table)
}

// formatAddresses renders "net=addr, addr; net2=addr" sorted by network.
func formatAddresses(addresses map[string][]compute.Address) string {
	networks := make([]string, 0, len(addresses))
	for network := range addresses {
		networks = append(networks, network)
	}

	sort.Strings(networks)

	parts := make([]string, 0, len(networks))

	for _, network := range networks {
		addrs := make([]string, 0, len(addresses[network]))
		for _, address := range addresses[network] {
			addrs = append(addrs, address.Addr)
		}

		parts = append(parts, network+"="+strings.Join(addrs, ", "))
	}

	return strings.Join(parts, "; ")
}

func formatMetadata(metadata map[string]string) string {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+metadata[key])
	}

	return strings.Join(parts, ", ")
}
