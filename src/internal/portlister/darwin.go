package portlister

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bemindlab/portscope/src/internal/types"
)

// lsofLister enumerates sockets on macOS with lsof field output
// (-F pcn: one line per field, prefixed p=pid, c=command, n=address).
type lsofLister struct {
	resolver *processResolver
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func newLsofLister(resolver *processResolver) *lsofLister {
	return &lsofLister{resolver: resolver, run: runCommand}
}

func (l *lsofLister) ListPorts(ctx context.Context) ([]types.RawPortRow, error) {
	// TCP sockets restricted to LISTEN state. lsof exits 1 when the
	// filter matches nothing, which is an empty port table, not a
	// failed query.
	out, err := l.run(ctx, "lsof", "-nP", "-iTCP", "-sTCP:LISTEN", "-Fpcn")
	if err != nil && !lsofNoMatches(out, err) {
		return nil, types.NewOSQueryError("lsof -iTCP", err)
	}
	rows := l.parseLsofOutput(string(out), types.ProtocolTCP)

	// UDP sockets have no LISTEN state; every bound socket counts.
	// Failures here are tolerated rather than fatal.
	if out, err := l.run(ctx, "lsof", "-nP", "-iUDP", "-Fpcn"); err == nil {
		rows = append(rows, l.parseLsofOutput(string(out), types.ProtocolUDP)...)
	}

	return rows, nil
}

// lsofNoMatches reports whether a failed lsof run just means no socket
// matched the filter: a plain exit error with nothing on stdout or
// stderr. Anything with diagnostic output is a real failure.
func lsofNoMatches(out []byte, err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	return len(bytes.TrimSpace(out)) == 0 && len(bytes.TrimSpace(exitErr.Stderr)) == 0
}

func (l *lsofLister) parseLsofOutput(out string, protocol types.Protocol) []types.RawPortRow {
	var rows []types.RawPortRow

	var pid int
	var command string
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		switch line[0] {
		case 'p':
			pid, _ = strconv.Atoi(line[1:])
			command = ""
		case 'c':
			command = line[1:]
		case 'n':
			port := parseLsofAddr(line[1:])
			if port == 0 {
				continue
			}

			row := types.RawPortRow{
				Port:     port,
				Protocol: protocol,
				PID:      pid,
			}
			if protocol == types.ProtocolTCP {
				row.State = "LISTEN"
			}

			row.ProcessName, row.CommandLine = l.resolver.Resolve(pid)
			if row.ProcessName == "" {
				row.ProcessName = command
			}
			rows = append(rows, row)
		}
	}

	return rows
}

// parseLsofAddr extracts the port from addresses like "*:8080",
// "127.0.0.1:8080" or "[::1]:8080".
func parseLsofAddr(addr string) int {
	idx := strings.LastIndexByte(addr, ':')
	if idx == -1 || idx == len(addr)-1 {
		return 0
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return 0
	}
	return port
}
