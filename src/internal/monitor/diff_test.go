package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemindlab/portscope/src/internal/types"
)

func port(port int, protocol types.Protocol, pid int, name string) types.PortInfo {
	return types.PortInfo{
		Port:        port,
		Protocol:    protocol,
		PID:         pid,
		ProcessName: name,
		CommandLine: name + " --serve",
		State:       "LISTEN",
	}
}

func keys(entries []types.PortInfo) []types.PortKey {
	out := make([]types.PortKey, len(entries))
	for i, e := range entries {
		out[i] = e.Key()
	}
	return out
}

func TestDiff_IdenticalSnapshots(t *testing.T) {
	snap := NewSnapshot([]types.PortInfo{
		port(3000, types.ProtocolTCP, 10, "node"),
		port(8080, types.ProtocolTCP, 20, "java"),
	})

	changes := Diff(snap, snap)
	assert.True(t, changes.Empty())
}

func TestDiff_AddedAndRemoved(t *testing.T) {
	old := NewSnapshot([]types.PortInfo{
		port(3000, types.ProtocolTCP, 10, "node"),
		port(5432, types.ProtocolTCP, 30, "postgres"),
	})
	current := NewSnapshot([]types.PortInfo{
		port(3000, types.ProtocolTCP, 10, "node"),
		port(8080, types.ProtocolTCP, 20, "java"),
	})

	changes := Diff(old, current)

	require.Len(t, changes.Added, 1)
	assert.Equal(t, 8080, changes.Added[0].Port)
	require.Len(t, changes.Removed, 1)
	assert.Equal(t, 5432, changes.Removed[0].Port)
	assert.Empty(t, changes.Updated)
}

func TestDiff_PIDChangeIsUpdate(t *testing.T) {
	// A restarted dev server keeps the port but changes pid. That is one
	// update, not a remove+add pair.
	old := NewSnapshot([]types.PortInfo{port(3000, types.ProtocolTCP, 10, "node")})
	current := NewSnapshot([]types.PortInfo{port(3000, types.ProtocolTCP, 99, "node")})

	changes := Diff(old, current)

	assert.Empty(t, changes.Added)
	assert.Empty(t, changes.Removed)
	require.Len(t, changes.Updated, 1)
	assert.Equal(t, 99, changes.Updated[0].PID)
}

func TestDiff_ProtocolIsPartOfIdentity(t *testing.T) {
	// 3000/tcp disappearing while 3000/udp appears is a remove plus an
	// add, not an update.
	old := NewSnapshot([]types.PortInfo{port(3000, types.ProtocolTCP, 10, "node")})
	current := NewSnapshot([]types.PortInfo{port(3000, types.ProtocolUDP, 10, "node")})

	changes := Diff(old, current)

	require.Len(t, changes.Added, 1)
	assert.Equal(t, types.ProtocolUDP, changes.Added[0].Protocol)
	require.Len(t, changes.Removed, 1)
	assert.Equal(t, types.ProtocolTCP, changes.Removed[0].Protocol)
	assert.Empty(t, changes.Updated)
}

func TestDiff_CategoriesSortedByKey(t *testing.T) {
	old := NewSnapshot(nil)
	current := NewSnapshot([]types.PortInfo{
		port(9000, types.ProtocolTCP, 1, "a"),
		port(3000, types.ProtocolUDP, 2, "b"),
		port(3000, types.ProtocolTCP, 3, "c"),
		port(5000, types.ProtocolTCP, 4, "d"),
	})

	changes := Diff(old, current)

	assert.Equal(t, []types.PortKey{
		{Port: 3000, Protocol: types.ProtocolTCP},
		{Port: 3000, Protocol: types.ProtocolUDP},
		{Port: 5000, Protocol: types.ProtocolTCP},
		{Port: 9000, Protocol: types.ProtocolTCP},
	}, keys(changes.Added))
}

func TestDiff_StateChangeIsUpdate(t *testing.T) {
	oldEntry := port(3000, types.ProtocolTCP, 10, "node")
	newEntry := oldEntry
	newEntry.State = "CLOSE_WAIT"

	changes := Diff(NewSnapshot([]types.PortInfo{oldEntry}), NewSnapshot([]types.PortInfo{newEntry}))

	require.Len(t, changes.Updated, 1)
	assert.Equal(t, "CLOSE_WAIT", changes.Updated[0].State)
}

func TestSnapshot_Sorted(t *testing.T) {
	snap := NewSnapshot([]types.PortInfo{
		port(8080, types.ProtocolTCP, 1, "a"),
		port(3000, types.ProtocolTCP, 2, "b"),
	})

	sorted := snap.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, 3000, sorted[0].Port)
	assert.Equal(t, 8080, sorted[1].Port)
}
