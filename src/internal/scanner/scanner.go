// Package scanner normalizes raw OS port rows into the canonical PortInfo
// model: range filtering, stable dedup and deterministic ordering.
package scanner

import (
	"context"
	"sort"

	"github.com/bemindlab/portscope/src/internal/portlister"
	"github.com/bemindlab/portscope/src/internal/types"
)

// DefaultDevRanges are the port ranges scanned when no explicit range is
// given. They cover the ports development servers conventionally bind.
var DefaultDevRanges = []types.PortRange{
	{Start: 3000, End: 9999},
}

// Scanner wraps a platform Lister with validation and normalization.
// Every operation performs a fresh lister call; caching snapshots is the
// monitor's responsibility, not this layer's.
type Scanner struct {
	lister    portlister.Lister
	devRanges []types.PortRange
}

// New creates a Scanner. An empty devRanges falls back to DefaultDevRanges.
func New(lister portlister.Lister, devRanges []types.PortRange) *Scanner {
	if len(devRanges) == 0 {
		devRanges = DefaultDevRanges
	}
	return &Scanner{lister: lister, devRanges: devRanges}
}

// ScanPorts returns all currently listening ports within [start, end],
// sorted ascending by (port, protocol).
func (s *Scanner) ScanPorts(ctx context.Context, start, end int) ([]types.PortInfo, error) {
	if err := types.ValidateRange(start, end); err != nil {
		return nil, err
	}

	return s.scan(ctx, []types.PortRange{{Start: start, End: end}})
}

// ScanDevPorts scans the configured development port ranges.
func (s *Scanner) ScanDevPorts(ctx context.Context) ([]types.PortInfo, error) {
	return s.scan(ctx, s.devRanges)
}

// GetPortInfo returns the entry bound to a single port, or nil if nothing
// is listening there.
func (s *Scanner) GetPortInfo(ctx context.Context, port int) (*types.PortInfo, error) {
	if err := types.ValidatePort(port); err != nil {
		return nil, err
	}

	entries, err := s.scan(ctx, []types.PortRange{{Start: port, End: port}})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (s *Scanner) scan(ctx context.Context, ranges []types.PortRange) ([]types.PortInfo, error) {
	rows, err := s.lister.ListPorts(ctx)
	if err != nil {
		return nil, err
	}

	// Stable dedup on (port, protocol): the first-seen row wins, so a
	// dual-stack socket enumerated twice yields one entry.
	seen := make(map[types.PortKey]bool)
	var entries []types.PortInfo

	for _, row := range rows {
		if !inAnyRange(ranges, row.Port) {
			continue
		}

		info := types.PortInfo{
			Port:        row.Port,
			Protocol:    row.Protocol,
			PID:         row.PID,
			ProcessName: row.ProcessName,
			CommandLine: row.CommandLine,
			State:       row.State,
		}
		if seen[info.Key()] {
			continue
		}
		seen[info.Key()] = true
		entries = append(entries, info)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key().Less(entries[j].Key())
	})

	return entries, nil
}

func inAnyRange(ranges []types.PortRange, port int) bool {
	for _, r := range ranges {
		if r.Contains(port) {
			return true
		}
	}
	return false
}
