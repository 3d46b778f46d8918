package commands

import (
	"github.com/spf13/cobra"

	"github.com/bemindlab/portscope/src/internal/output"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the portscope version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return output.Print(map[string]string{"version": Version}, func() {
				output.Info("portscope %s", Version)
			})
		},
	}
}
