// Package actions implements the mutating operations exposed to users:
// terminating the process that owns a port and opening a port in the
// default browser. Outcomes are reported as ActionResult values so
// callers can surface failures without unwrapping errors.
package actions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/bemindlab/portscope/src/internal/types"
)

// PortFinder is the slice of the scanner the actions layer needs: a fresh
// lookup of who owns a port right now.
type PortFinder interface {
	GetPortInfo(ctx context.Context, port int) (*types.PortInfo, error)
}

// Actions performs kill and open operations. The process and browser
// calls sit behind function fields so tests can run without signalling
// real pids or spawning a browser.
type Actions struct {
	finder PortFinder
	log    zerolog.Logger

	terminate func(ctx context.Context, pid int) error
	kill      func(ctx context.Context, pid int) error
	openURL   func(rawURL string) error

	// releaseWait bounds how long KillProcess waits for the port to be
	// released after signalling.
	releaseWait time.Duration
}

// New creates an Actions layer bound to a port finder.
func New(finder PortFinder, log zerolog.Logger) *Actions {
	return &Actions{
		finder:      finder,
		log:         log.With().Str("component", "actions").Logger(),
		terminate:   terminateProcess,
		kill:        killProcess,
		openURL:     browser.OpenURL,
		releaseWait: 3 * time.Second,
	}
}

// KillProcess terminates whatever process currently owns the port. It
// signals SIGTERM first and escalates to SIGKILL if the port stays bound;
// force skips the graceful phase and kills immediately. A process that
// vanished between lookup and signal counts as success.
func (a *Actions) KillProcess(ctx context.Context, port int, force bool) types.ActionResult {
	if err := types.ValidatePort(port); err != nil {
		return types.FailureErr(err, "invalid port %d", port)
	}

	// Always re-resolve ownership; a pid captured earlier may have been
	// recycled for an unrelated process.
	info, err := a.finder.GetPortInfo(ctx, port)
	if err != nil {
		return types.FailureErr(err, "could not inspect port %d", port)
	}
	if info == nil {
		return types.Failure("no process is listening on port %d", port)
	}
	if info.PID <= 0 {
		return types.Failure("owner of port %d is unknown, try with elevated privileges", port)
	}

	a.log.Info().
		Int("port", port).
		Int("pid", info.PID).
		Str("process", info.ProcessName).
		Bool("force", force).
		Msg("terminating process")

	if !force {
		if err := a.terminate(ctx, info.PID); err != nil {
			if processGone(err) {
				return types.Ok("process %s (pid %d) already exited", info.ProcessName, info.PID)
			}
			return types.FailureErr(err, "could not signal process %d", info.PID)
		}

		if a.waitPortFree(ctx, port) == nil {
			return types.Ok("killed %s (pid %d) on port %d", info.ProcessName, info.PID, port)
		}

		// Graceful shutdown did not release the port in time.
		a.log.Warn().Int("pid", info.PID).Msg("escalating to SIGKILL")
	}
	if err := a.kill(ctx, info.PID); err != nil && !processGone(err) {
		return types.FailureErr(err, "could not force-kill process %d", info.PID)
	}

	if err := a.waitPortFree(ctx, port); err != nil {
		return types.FailureErr(err, "process %d signalled but port %d is still bound", info.PID, port)
	}
	return types.Ok("killed %s (pid %d) on port %d", info.ProcessName, info.PID, port)
}

var errPortStillBound = errors.New("port still bound")

// waitPortFree polls until nothing is listening on the port or the
// release window elapses.
func (a *Actions) waitPortFree(ctx context.Context, port int) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = a.releaseWait

	return backoff.Retry(func() error {
		info, err := a.finder.GetPortInfo(ctx, port)
		if err != nil {
			return backoff.Permanent(err)
		}
		if info != nil {
			return errPortStillBound
		}
		return nil
	}, backoff.WithContext(policy, ctx))
}

// OpenInBrowser opens <protocol>://localhost:<port> in the default
// browser. An empty protocol means http; only http and https are valid.
func (a *Actions) OpenInBrowser(port int, protocol string) types.ActionResult {
	if err := types.ValidatePort(port); err != nil {
		return types.FailureErr(err, "invalid port %d", port)
	}
	if protocol == "" {
		protocol = "http"
	}
	if protocol != "http" && protocol != "https" {
		return types.Failure("unsupported protocol %q, use http or https", protocol)
	}
	return a.OpenURL(fmt.Sprintf("%s://localhost:%d", protocol, port))
}

// OpenURL opens a URL in the default browser. A missing scheme defaults
// to http; anything other than http or https is rejected.
func (a *Actions) OpenURL(rawURL string) types.ActionResult {
	// "localhost:3000" parses with scheme "localhost", so default the
	// scheme before parsing rather than after.
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return types.FailureErr(err, "invalid url %q", rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return types.Failure("refusing to open %q: only http and https urls are supported", rawURL)
	}

	target := parsed.String()
	a.log.Info().Str("url", target).Msg("opening browser")

	if err := a.openURL(target); err != nil {
		return types.FailureErr(err, "could not open browser for %s", target)
	}
	return types.Ok("opened %s", target)
}

func terminateProcess(ctx context.Context, pid int) error {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return err
	}
	return p.TerminateWithContext(ctx)
}

func killProcess(ctx context.Context, pid int) error {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return err
	}
	return p.KillWithContext(ctx)
}

// processGone reports whether a signalling error means the target already
// exited, which the kill flow treats as success.
func processGone(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, process.ErrorProcessNotRunning) || errors.Is(err, syscall.ESRCH) {
		return true
	}
	return strings.Contains(err.Error(), "process already finished")
}
