package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bemindlab/portscope/src/internal/output"
	"github.com/bemindlab/portscope/src/internal/types"
)

var (
	listStart int
	listEnd   int
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List listening ports and their owning processes",
		Long:  `Scans the development port ranges (or an explicit --start/--end range) and prints every listening port with its process and detected framework.`,
		RunE:  runList,
	}

	cmd.Flags().IntVar(&listStart, "start", 0, "Start of an explicit port range")
	cmd.Flags().IntVar(&listEnd, "end", 0, "End of an explicit port range")

	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	env, err := newRuntimeEnv()
	if err != nil {
		return err
	}

	if (listStart == 0) != (listEnd == 0) {
		return fmt.Errorf("--start and --end must be given together")
	}

	var entries []types.PortInfo
	if listStart != 0 {
		entries, err = env.scanner.ScanPorts(cmd.Context(), listStart, listEnd)
	} else {
		entries, err = env.scanner.ScanDevPorts(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("port scan failed: %w", err)
	}

	entries = env.detector.Enrich(entries)

	return output.Print(entries, func() {
		printPortTable(entries)
	})
}

func printPortTable(entries []types.PortInfo) {
	if len(entries) == 0 {
		output.Info("No listening ports found.")
		return
	}

	output.Section("🔎", "Listening ports (%s)", output.Count(len(entries)))
	for _, entry := range entries {
		output.Item("%-12s %-28s %s",
			entry.Key().String(),
			formatProcess(entry),
			output.Muted("%s", formatFramework(entry)))
	}
	output.Newline()
}
