// Package commands provides the command-line interface for portscope.
package commands

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/bemindlab/portscope/src/internal/actions"
	"github.com/bemindlab/portscope/src/internal/config"
	"github.com/bemindlab/portscope/src/internal/framework"
	"github.com/bemindlab/portscope/src/internal/portlister"
	"github.com/bemindlab/portscope/src/internal/scanner"
	"github.com/bemindlab/portscope/src/internal/types"
)

// Version is the CLI version, overridden at build time via ldflags.
var Version = "0.1.0-dev"

var log = zerolog.Nop()

// SetLogger installs the process logger configured by the root command.
func SetLogger(l zerolog.Logger) {
	log = l
}

// runtimeEnv bundles the wired components a command needs. Each command
// invocation builds one from the resolved configuration.
type runtimeEnv struct {
	cfg      *config.Config
	scanner  *scanner.Scanner
	actions  *actions.Actions
	detector *framework.Detector
}

// newRuntimeEnv wires the platform port lister, scanner, actions and
// framework detector from the nearest portscope.yaml. Swappable so
// command tests can inject fakes.
var newRuntimeEnv = func() (*runtimeEnv, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg, err := config.LoadOrDefault(cwd)
	if err != nil {
		return nil, err
	}

	lister, err := portlister.New(runtime.GOOS)
	if err != nil {
		return nil, err
	}

	detector, err := framework.NewDetector(cfg.Frameworks...)
	if err != nil {
		return nil, err
	}

	sc := scanner.New(lister, cfg.DevRanges)

	return &runtimeEnv{
		cfg:      cfg,
		scanner:  sc,
		actions:  actions.New(sc, log),
		detector: detector,
	}, nil
}

func formatProcess(entry types.PortInfo) string {
	if entry.ProcessName == "" {
		return "unknown"
	}
	if entry.PID > 0 {
		return fmt.Sprintf("%s (pid %d)", entry.ProcessName, entry.PID)
	}
	return entry.ProcessName
}

func formatFramework(entry types.PortInfo) string {
	if entry.Framework == nil {
		return "-"
	}
	if entry.Framework.Icon != "" {
		return entry.Framework.Icon + " " + entry.Framework.DisplayName
	}
	return entry.Framework.DisplayName
}
