package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bemindlab/portscope/src/internal/monitor"
	"github.com/bemindlab/portscope/src/internal/output"
	"github.com/bemindlab/portscope/src/internal/types"
)

var (
	watchIntervalMS int
	watchStart      int
	watchEnd        int
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch ports and print changes as they happen",
		Long:  `Polls the port table on an interval and prints an event line whenever a port appears, disappears, or changes owner. Stop with Ctrl+C.`,
		RunE:  runWatch,
	}

	cmd.Flags().IntVar(&watchIntervalMS, "interval", 0, "Poll interval in milliseconds (default from portscope.yaml)")
	cmd.Flags().IntVar(&watchStart, "start", 0, "Start of an explicit port range")
	cmd.Flags().IntVar(&watchEnd, "end", 0, "End of an explicit port range")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	env, err := newRuntimeEnv()
	if err != nil {
		return err
	}

	if (watchStart == 0) != (watchEnd == 0) {
		return fmt.Errorf("--start and --end must be given together")
	}

	opts := monitor.Options{Interval: env.cfg.Interval()}
	if watchIntervalMS != 0 {
		opts.Interval = time.Duration(watchIntervalMS) * time.Millisecond
	}
	if watchStart != 0 {
		opts.Range = &types.PortRange{Start: watchStart, End: watchEnd}
	}

	mon := monitor.New(env.scanner, log)
	defer mon.Cleanup()

	initial, err := mon.Start(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("failed to start monitoring: %w", err)
	}

	initial = env.detector.Enrich(initial)
	output.PrintDefault(func() {
		printPortTable(initial)
		output.Info("Watching for changes every %s. Press Ctrl+C to stop.", opts.Interval)
	})
	if output.IsJSON() {
		for _, entry := range initial {
			printWatchEventJSON("snapshot", &entry, nil)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-sigChan:
			output.PrintDefault(func() {
				output.Newline()
				output.Info("Stopped watching.")
			})
			return nil
		case ev, ok := <-mon.Events():
			if !ok {
				return nil
			}
			printWatchEvent(env, ev)
		}
	}
}

func printWatchEvent(env *runtimeEnv, ev monitor.Event) {
	if ev.Entry != nil {
		entry := *ev.Entry
		entry.Framework = env.detector.Detect(entry)
		ev.Entry = &entry
	}

	if output.IsJSON() {
		printWatchEventJSON(string(ev.Type), ev.Entry, ev.Err)
		return
	}

	ts := time.Now().Format("15:04:05")
	switch ev.Type {
	case monitor.EventPortAdded:
		output.ItemSuccess("%s  +%s %s %s", ts, ev.Entry.Key().String(),
			formatProcess(*ev.Entry), output.Muted("%s", formatFramework(*ev.Entry)))
	case monitor.EventPortRemoved:
		output.ItemError("%s  -%s %s", ts, ev.Entry.Key().String(), formatProcess(*ev.Entry))
	case monitor.EventPortUpdated:
		output.ItemWarning("%s  ~%s now %s", ts, ev.Entry.Key().String(), formatProcess(*ev.Entry))
	case monitor.EventMonitorError:
		output.ItemWarning("%s  scan failed: %v", ts, ev.Err)
	}
}

func printWatchEventJSON(eventType string, entry *types.PortInfo, evErr error) {
	line := map[string]interface{}{
		"type":      eventType,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if entry != nil {
		line["entry"] = entry
	}
	if evErr != nil {
		line["error"] = evErr.Error()
	}
	if err := output.PrintJSON(line); err != nil {
		log.Debug().Err(err).Msg("failed to print event")
	}
}
