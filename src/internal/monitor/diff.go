package monitor

import (
	"sort"

	"github.com/bemindlab/portscope/src/internal/types"
)

// Snapshot is the set of listening endpoints observed in one poll, keyed
// by (port, protocol).
type Snapshot map[types.PortKey]types.PortInfo

// NewSnapshot indexes scan results by key.
func NewSnapshot(entries []types.PortInfo) Snapshot {
	snap := make(Snapshot, len(entries))
	for _, entry := range entries {
		snap[entry.Key()] = entry
	}
	return snap
}

// Sorted returns the snapshot's entries ascending by (port, protocol).
func (s Snapshot) Sorted() []types.PortInfo {
	entries := make([]types.PortInfo, 0, len(s))
	for _, entry := range s {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key().Less(entries[j].Key())
	})
	return entries
}

// Changes partitions the delta between two snapshots. Each category is
// sorted ascending by key. Updated holds the new state of entries whose
// key survived but whose owner fields changed.
type Changes struct {
	Added   []types.PortInfo
	Removed []types.PortInfo
	Updated []types.PortInfo
}

// Empty reports whether the two snapshots were identical.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Updated) == 0
}

// Diff compares an old snapshot with a new one. A key present in both
// with a different owner is an update, never a remove+add pair, so a
// process restart on the same port reads as one transition.
func Diff(old, current Snapshot) Changes {
	var c Changes

	for key, entry := range current {
		prev, existed := old[key]
		switch {
		case !existed:
			c.Added = append(c.Added, entry)
		case !prev.SameOwner(entry):
			c.Updated = append(c.Updated, entry)
		}
	}
	for key, entry := range old {
		if _, exists := current[key]; !exists {
			c.Removed = append(c.Removed, entry)
		}
	}

	sortByKey(c.Added)
	sortByKey(c.Removed)
	sortByKey(c.Updated)
	return c
}

func sortByKey(entries []types.PortInfo) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key().Less(entries[j].Key())
	})
}
