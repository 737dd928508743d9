package commands

import (
	"runtime"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// VersionInfo is the structured output of version.
type VersionInfo struct {
	Version   string `json:"version"    yaml:"version"`
	Commit    string `json:"commit"     yaml:"commit"`
	Built     string `json:"built"      yaml:"built"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long:  "Display detailed version information about the osapi CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}

			versionInfo := VersionInfo{
				Version:   version,
				Commit:    commit,
				Built:     date,
				GoVersion: runtime.Version(),
			}

			if format != constants.FormatTable {
				return writeStructured(cmd.OutOrStdout(), format, versionInfo)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Property", "Value")
			_ = table.Append([]string{"Version", versionInfo.Version})
			_ = table.Append([]string{"Commit", versionInfo.Commit})
			_ = table.Append([]string{"Built", versionInfo.Built})
			_ = table.Append([]string{"Go", versionInfo.GoVersion})

			return renderTable(table)
		},
	}
}
