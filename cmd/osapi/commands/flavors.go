package commands

import (
	"fmt"
	"strconv"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/fivetwenty-io/osapi/pkg/compute"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// FlavorRow is the structured output of flavors list.
type FlavorRow struct {
	ID   string `json:"id"   yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// FlavorDetail is the structured output of flavors show.
type FlavorDetail struct {
	ID        string `json:"id"        yaml:"id"`
	Name      string `json:"name"      yaml:"name"`
	RAM       int    `json:"ram"       yaml:"ram"`
	VCPUs     int    `json:"vcpus"     yaml:"vcpus"`
	Disk      int    `json:"disk"      yaml:"disk"`
	Ephemeral int    `json:"ephemeral" yaml:"ephemeral"`
	IsPublic  bool   `json:"is_public" yaml:"is_public"`
}

// NewFlavorsCommand creates the flavors command group.
func NewFlavorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "flavors",
		Aliases: []string{"flavor"},
		Short:   "Manage compute flavors",
		Long:    "List and inspect compute (Nova) flavors",
	}

	cmd.AddCommand(newFlavorsListCommand())
	cmd.AddCommand(newFlavorsShowCommand())

	return cmd
}

func newFlavorsListCommand() *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List flavors",
		Long: `List flavors available to the current project.

Sort keys include name, flavorid and memory_mb, e.g.
  osapi flavors list --sort memory_mb:desc`,
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

			flavors, err := fetchList(cmd.Context(), client.Flavors().List(), opts, compute.FlavorSummary.ID)
			if err != nil {
				return fmt.Errorf("failed to list flavors: %w", err)
			}

			rows := make([]FlavorRow, 0, len(flavors))
			for _, flavor := range flavors {
				rows = append(rows, FlavorRow{ID: flavor.ID(), Name: flavor.Name()})
			}

			if format != constants.FormatTable {
				return writeStructured(cmd.OutOrStdout(), format, rows)
			}

			if len(rows) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No flavors found")

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

func newFlavorsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show FLAVOR_ID",
		Short: "Show flavor details",
		Long:  "Display the sizing of a flavor",
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

			flavor, err := client.Flavors().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get flavor: %w", err)
			}

			detail := FlavorDetail{
				ID:        flavor.ID(),
				Name:      flavor.Name(),
				RAM:       flavor.RAM(),
				VCPUs:     flavor.VCPUs(),
				Disk:      flavor.Disk(),
				Ephemeral: flavor.Ephemeral(),
				IsPublic:  flavor.IsPublic(),
			}

			if format != constants.FormatTable {
				return writeStructured(cmd.OutOrStdout(), format, detail)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Property", "Value")

			_ = table.Append([]string{"ID", detail.ID})
			_ = table.Append([]string{"Name", detail.Name})
			_ = table.Append([]string{"RAM (MB)", strconv.Itoa(detail.RAM)})
			_ = table.Append([]string{"VCPUs", strconv.Itoa(detail.VCPUs)})
			_ = table.Append([]string{"Disk (GB)", strconv.Itoa(detail.Disk)})
			_ = table.Append([]string{"Ephemeral (GB)", strconv.Itoa(detail.Ephemeral)})
			_ = table.Append([]string{"Public", strconv.FormatBool(detail.IsPublic)})

			return renderTable(table)
		},
	}
}
