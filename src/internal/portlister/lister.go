// Package portlister queries the operating system for currently bound
// listening sockets and the processes that own them. One implementation
// exists per desktop OS family behind a single interface; callers select
// the strategy once at construction and never need to know which ran.
package portlister

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/bemindlab/portscope/src/internal/types"
)

// QueryTimeout bounds a single OS port query. Exceeding it is an
// OSQueryError, not a hang.
const QueryTimeout = 3 * time.Second

// Lister enumerates listening sockets. Implementations return raw rows
// with no business logic; validation, filtering and dedup happen in the
// scanner layer.
type Lister interface {
	ListPorts(ctx context.Context) ([]types.RawPortRow, error)
}

// New returns the lister for the given platform identifier (a GOOS value,
// passed explicitly rather than read from ambient state).
func New(platform string) (Lister, error) {
	resolver := newProcessResolver()

	switch platform {
	case "linux":
		return newProcfsLister(resolver), nil
	case "darwin":
		return newLsofLister(resolver), nil
	case "windows":
		return newNetstatLister(resolver), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %q", platform)
	}
}

// runCommand executes an OS utility under the query timeout.
// It is the default command seam; tests substitute their own.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	// #nosec G204 -- name is a hard-coded OS utility, args are fixed flags
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%s timed out after %s", name, QueryTimeout)
	}
	return out, err
}
