package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bemindlab/portscope/src/internal/output"
)

var openProtocol string

// NewOpenCommand creates the open command.
func NewOpenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <port>",
		Short: "Open a port in the default browser",
		Args:  cobra.ExactArgs(1),
		RunE:  runOpen,
	}

	cmd.Flags().StringVar(&openProtocol, "protocol", "http", "Protocol to open the port with (http, https)")

	return cmd
}

func runOpen(cmd *cobra.Command, args []string) error {
	port, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid port %q", args[0])
	}

	env, err := newRuntimeEnv()
	if err != nil {
		return err
	}

	res := env.actions.OpenInBrowser(port, openProtocol)

	if err := output.Print(res, func() {
		if res.Success {
			output.Success("%s", res.Message)
		} else {
			output.Error("%s", res.Message)
		}
	}); err != nil {
		return err
	}

	if !res.Success {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		return fmt.Errorf("open failed: %s", res.Message)
	}
	return nil
}
