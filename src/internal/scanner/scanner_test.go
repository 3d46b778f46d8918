package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/bemindlab/portscope/src/internal/types"
)

// fakeLister returns canned rows without touching the OS.
type fakeLister struct {
	rows []types.RawPortRow
	err  error
}

func (f *fakeLister) ListPorts(_ context.Context) ([]types.RawPortRow, error) {
	return f.rows, f.err
}

func row(port int, protocol types.Protocol, pid int, name string) types.RawPortRow {
	return types.RawPortRow{
		Port:        port,
		Protocol:    protocol,
		PID:         pid,
		ProcessName: name,
		CommandLine: name + " --serve",
		State:       "LISTEN",
	}
}

func TestScanPorts_RangeFilterAndSort(t *testing.T) {
	lister := &fakeLister{rows: []types.RawPortRow{
		row(8080, types.ProtocolTCP, 30, "java"),
		row(3000, types.ProtocolTCP, 10, "node"),
		row(3000, types.ProtocolUDP, 11, "node"),
		row(443, types.ProtocolTCP, 1, "nginx"),
		row(9999, types.ProtocolTCP, 40, "python"),
		row(12000, types.ProtocolTCP, 50, "custom"),
	}}
	s := New(lister, nil)

	entries, err := s.ScanPorts(context.Background(), 3000, 9999)
	if err != nil {
		t.Fatalf("ScanPorts() error = %v", err)
	}

	wantKeys := []types.PortKey{
		{Port: 3000, Protocol: types.ProtocolTCP},
		{Port: 3000, Protocol: types.ProtocolUDP},
		{Port: 8080, Protocol: types.ProtocolTCP},
		{Port: 9999, Protocol: types.ProtocolTCP},
	}
	if len(entries) != len(wantKeys) {
		t.Fatalf("got %d entries, want %d", len(entries), len(wantKeys))
	}
	for i, want := range wantKeys {
		if entries[i].Key() != want {
			t.Errorf("entry %d key = %v, want %v", i, entries[i].Key(), want)
		}
	}
}

func TestScanPorts_InvalidRange(t *testing.T) {
	s := New(&fakeLister{}, nil)

	tests := []struct {
		name  string
		start int
		end   int
	}{
		{"inverted", 9000, 3000},
		{"start zero", 0, 9000},
		{"end too large", 3000, 70000},
		{"negative", -1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ScanPorts(context.Background(), tt.start, tt.end)
			if !errors.Is(err, types.ErrInvalidRange) {
				t.Errorf("ScanPorts(%d, %d) error = %v, want ErrInvalidRange", tt.start, tt.end, err)
			}
		})
	}
}

func TestScanPorts_DedupKeepsFirstSeen(t *testing.T) {
	// A dual-stack socket shows up once per address family; the
	// first-seen row must win.
	lister := &fakeLister{rows: []types.RawPortRow{
		{Port: 3000, Protocol: types.ProtocolTCP, PID: 10, ProcessName: "node", State: "LISTEN"},
		{Port: 3000, Protocol: types.ProtocolTCP, PID: 10, ProcessName: "node-v6", State: "LISTEN"},
	}}
	s := New(lister, nil)

	entries, err := s.ScanPorts(context.Background(), 1, 65535)
	if err != nil {
		t.Fatalf("ScanPorts() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 after dedup", len(entries))
	}
	if entries[0].ProcessName != "node" {
		t.Errorf("ProcessName = %q, want first-seen %q", entries[0].ProcessName, "node")
	}
}

func TestScanDevPorts_UsesConfiguredRanges(t *testing.T) {
	lister := &fakeLister{rows: []types.RawPortRow{
		row(3000, types.ProtocolTCP, 10, "node"),
		row(5173, types.ProtocolTCP, 20, "vite"),
		row(15000, types.ProtocolTCP, 30, "other"),
	}}
	s := New(lister, []types.PortRange{{Start: 3000, End: 3999}, {Start: 5000, End: 5999}})

	entries, err := s.ScanDevPorts(context.Background())
	if err != nil {
		t.Fatalf("ScanDevPorts() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Port != 3000 || entries[1].Port != 5173 {
		t.Errorf("ports = %d, %d, want 3000, 5173", entries[0].Port, entries[1].Port)
	}
}

func TestGetPortInfo(t *testing.T) {
	lister := &fakeLister{rows: []types.RawPortRow{
		row(3000, types.ProtocolTCP, 10, "node"),
	}}
	s := New(lister, nil)

	info, err := s.GetPortInfo(context.Background(), 3000)
	if err != nil {
		t.Fatalf("GetPortInfo() error = %v", err)
	}
	if info == nil || info.Port != 3000 || info.PID != 10 {
		t.Fatalf("GetPortInfo(3000) = %+v, want port 3000 pid 10", info)
	}

	info, err = s.GetPortInfo(context.Background(), 3001)
	if err != nil {
		t.Fatalf("GetPortInfo() error = %v", err)
	}
	if info != nil {
		t.Errorf("GetPortInfo(3001) = %+v, want nil for unbound port", info)
	}
}

func TestGetPortInfo_InvalidPort(t *testing.T) {
	s := New(&fakeLister{}, nil)

	for _, port := range []int{0, -5, 65536, 70000} {
		_, err := s.GetPortInfo(context.Background(), port)
		if !errors.Is(err, types.ErrInvalidPort) {
			t.Errorf("GetPortInfo(%d) error = %v, want ErrInvalidPort", port, err)
		}
	}
}

func TestScan_PropagatesOSQueryError(t *testing.T) {
	queryErr := types.NewOSQueryError("netstat -ano", errors.New("boom"))
	s := New(&fakeLister{err: queryErr}, nil)

	_, err := s.ScanDevPorts(context.Background())
	var qe *types.OSQueryError
	if !errors.As(err, &qe) {
		t.Fatalf("error = %T (%v), want *types.OSQueryError", err, err)
	}
}
