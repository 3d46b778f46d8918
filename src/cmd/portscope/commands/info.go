package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bemindlab/portscope/src/internal/output"
)

// NewInfoCommand creates the info command.
func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <port>",
		Short: "Show what is listening on a single port",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	port, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid port %q", args[0])
	}

	env, err := newRuntimeEnv()
	if err != nil {
		return err
	}

	info, err := env.scanner.GetPortInfo(cmd.Context(), port)
	if err != nil {
		return fmt.Errorf("port lookup failed: %w", err)
	}

	if info == nil {
		if output.IsJSON() {
			return output.PrintJSON(map[string]interface{}{"port": port, "bound": false})
		}
		output.Info("Nothing is listening on port %d.", port)
		return nil
	}

	entry := *info
	entry.Framework = env.detector.Detect(entry)

	return output.Print(entry, func() {
		output.Section("🔎", "Port %s", entry.Key().String())
		output.Label("Process", "%s", formatProcess(entry))
		if entry.CommandLine != "" {
			output.Label("Command", "%s", entry.CommandLine)
		}
		output.Label("State", "%s", entry.State)
		output.Label("Framework", "%s", formatFramework(entry))
		output.Newline()
	})
}
