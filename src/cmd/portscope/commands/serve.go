package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bemindlab/portscope/src/internal/dashboard"
	"github.com/bemindlab/portscope/src/internal/monitor"
	"github.com/bemindlab/portscope/src/internal/output"
)

var (
	servePort    int
	serveNoOpen  bool
	serveNoWatch bool
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local dashboard",
		Long:  `Starts the dashboard server with a JSON API, a live websocket event stream, and prometheus metrics. Monitoring starts automatically unless --no-watch is given.`,
		RunE:  runServe,
	}

	cmd.Flags().IntVar(&servePort, "port", 0, "Dashboard port (default from portscope.yaml)")
	cmd.Flags().BoolVar(&serveNoOpen, "no-open", false, "Do not open the dashboard in the browser")
	cmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not start port monitoring automatically")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	env, err := newRuntimeEnv()
	if err != nil {
		return err
	}

	port := env.cfg.DashboardPort
	if servePort != 0 {
		port = servePort
	}

	mon := monitor.New(env.scanner, log)
	defer mon.Cleanup()

	srv := dashboard.New(dashboard.Options{
		Port:     port,
		Scanner:  env.scanner,
		Monitor:  mon,
		Actions:  env.actions,
		Detector: env.detector,
		Log:      log,
	})

	url, err := srv.Start()
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			log.Warn().Err(err).Msg("dashboard shutdown failed")
		}
	}()

	if !serveNoWatch {
		if _, err := mon.Start(cmd.Context(), monitor.Options{Interval: env.cfg.Interval()}); err != nil {
			return fmt.Errorf("failed to start monitoring: %w", err)
		}
	}

	output.PrintDefault(func() {
		output.Section("🚀", "Dashboard running")
		output.Label("URL", "%s", output.URL(url))
		output.Label("Metrics", "%s", output.URL(url+"/metrics"))
		output.Info("Press Ctrl+C to stop.")
	})
	if output.IsJSON() {
		if err := output.PrintJSON(map[string]interface{}{"url": url, "port": srv.Port()}); err != nil {
			return err
		}
	}

	if !serveNoOpen {
		if res := env.actions.OpenURL(url); !res.Success {
			log.Warn().Str("url", url).Msg(res.Message)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	<-sigChan

	output.PrintDefault(func() {
		output.Newline()
		output.Info("Shutting down.")
	})
	return nil
}
