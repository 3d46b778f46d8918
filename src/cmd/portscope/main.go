package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bemindlab/portscope/src/cmd/portscope/commands"
	"github.com/bemindlab/portscope/src/internal/logging"
	"github.com/bemindlab/portscope/src/internal/output"
)

var (
	outputFormat   string
	debugMode      bool
	structuredLogs bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "portscope",
		Short: "Portscope - See and control what is listening on your dev ports",
		Long:  `Portscope continuously discovers locally bound ports, identifies the owning processes and frameworks, and lets you kill or open them from the CLI or a local dashboard.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Setup(logging.Options{Debug: debugMode, Structured: structuredLogs})
			commands.SetLogger(log)

			if debugMode {
				log.Debug().
					Str("version", commands.Version).
					Str("command", cmd.Name()).
					Strs("args", args).
					Msg("starting portscope")
			}

			return output.SetFormat(outputFormat)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "default", "Output format (default, json)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&structuredLogs, "structured-logs", false, "Enable structured JSON logging to stderr")

	rootCmd.AddCommand(
		commands.NewListCommand(),
		commands.NewInfoCommand(),
		commands.NewWatchCommand(),
		commands.NewKillCommand(),
		commands.NewOpenCommand(),
		commands.NewServeCommand(),
		commands.NewVersionCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
