package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bemindlab/portscope/src/internal/output"
)

var killForce bool

// NewKillCommand creates the kill command.
func NewKillCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kill <port>",
		Short: "Terminate the process listening on a port",
		Long:  `Looks up the process currently bound to the port, asks it to exit, and escalates to a forced kill if the port stays bound. --force skips the graceful phase.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runKill,
	}

	cmd.Flags().BoolVarP(&killForce, "force", "f", false, "Kill immediately instead of asking the process to exit")

	return cmd
}

func runKill(cmd *cobra.Command, args []string) error {
	port, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid port %q", args[0])
	}

	env, err := newRuntimeEnv()
	if err != nil {
		return err
	}

	res := env.actions.KillProcess(cmd.Context(), port, killForce)

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
		// Non-zero exit without double-printing the message.
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		return fmt.Errorf("kill failed: %s", res.Message)
	}
	return nil
}
