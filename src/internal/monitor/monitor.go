// Package monitor polls the port table on an interval and turns snapshot
// deltas into an ordered event stream.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/bemindlab/portscope/src/internal/types"
)

const (
	// MinInterval is the floor for the poll interval. Anything faster
	// hammers the OS port table for no benefit.
	MinInterval = time.Second

	// DefaultInterval is used when Options.Interval is zero.
	DefaultInterval = 2 * time.Second

	eventBufferSize = 64
)

// EventType classifies a monitor event.
type EventType string

const (
	EventPortAdded    EventType = "port-added"
	EventPortRemoved  EventType = "port-removed"
	EventPortUpdated  EventType = "port-updated"
	EventMonitorError EventType = "monitor-error"
)

// Event is one observed transition. Entry is set for port events and nil
// for monitor errors; Err is the inverse.
type Event struct {
	Type  EventType       `json:"type"`
	Entry *types.PortInfo `json:"entry,omitempty"`
	Err   error           `json:"-"`
}

// Options configures one monitoring session.
type Options struct {
	// Interval between polls. Zero means DefaultInterval; values below
	// MinInterval are rejected.
	Interval time.Duration

	// Range restricts monitoring to one explicit port range. Nil means
	// the scanner's development ranges.
	Range *types.PortRange
}

// PortScanner is the slice of the scanner the monitor needs.
type PortScanner interface {
	ScanPorts(ctx context.Context, start, end int) ([]types.PortInfo, error)
	ScanDevPorts(ctx context.Context) ([]types.PortInfo, error)
}

// Monitor owns the poll loop and the last-known snapshot. All methods are
// safe for concurrent use.
type Monitor struct {
	scanner PortScanner
	log     zerolog.Logger

	events    chan Event
	closeOnce sync.Once

	// mu guards the session lifecycle; stateMu guards the snapshot.
	// They are separate so Stop can wait for the loop while the loop
	// still swaps snapshots.
	mu     sync.Mutex
	active bool
	stop   chan struct{}
	done   chan struct{}

	stateMu  sync.Mutex
	snapshot Snapshot

	polling atomic.Bool
}

// New creates a Monitor around a scanner. Events are delivered on a
// buffered channel obtained via Events.
func New(scanner PortScanner, log zerolog.Logger) *Monitor {
	return &Monitor{
		scanner: scanner,
		log:     log.With().Str("component", "monitor").Logger(),
		events:  make(chan Event, eventBufferSize),
	}
}

// Events returns the event stream. Delivery is lossless while a session
// is active: once the buffer fills, polling waits for the subscriber to
// catch up. The channel is closed by Cleanup.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// IsActive reports whether a poll loop is running.
func (m *Monitor) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Start begins polling and returns the initial snapshot, sorted ascending
// by (port, protocol). Calling Start on an active monitor restarts it with
// the new options; the previous loop is fully stopped first.
func (m *Monitor) Start(ctx context.Context, opts Options) ([]types.PortInfo, error) {
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval {
		return nil, types.ErrInvalidInterval
	}
	if opts.Range != nil {
		if err := types.ValidateRange(opts.Range.Start, opts.Range.End); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()

	entries, err := m.scanOnce(ctx, opts.Range)
	if err != nil {
		return nil, err
	}

	initial := NewSnapshot(entries)
	m.stateMu.Lock()
	m.snapshot = initial
	m.stateMu.Unlock()

	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.active = true

	m.log.Info().
		Dur("interval", interval).
		Int("ports", len(entries)).
		Msg("monitoring started")

	go m.loop(interval, opts.Range, m.stop, m.done)

	return initial.Sorted(), nil
}

// Stop halts the poll loop and waits for it to exit. The last snapshot is
// kept so a restart diffs against known state. Stopping an inactive
// monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Monitor) stopLocked() {
	if !m.active {
		return
	}
	close(m.stop)
	<-m.done
	m.active = false
	m.log.Info().Msg("monitoring stopped")
}

// Cleanup stops the monitor and closes the event channel. The monitor
// cannot be restarted afterwards.
func (m *Monitor) Cleanup() {
	m.Stop()
	m.closeOnce.Do(func() {
		close(m.events)
	})
}

// Current returns the last-known snapshot, sorted ascending by key.
func (m *Monitor) Current() []types.PortInfo {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.snapshot.Sorted()
}

func (m *Monitor) loop(interval time.Duration, rng *types.PortRange, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.poll(rng, stop)
		}
	}
}

// poll runs one scan-diff-emit cycle. A cycle still in flight makes the
// next tick a no-op rather than queueing behind it.
func (m *Monitor) poll(rng *types.PortRange, stop chan struct{}) {
	if !m.polling.CompareAndSwap(false, true) {
		return
	}
	defer m.polling.Store(false)

	entries, err := m.scanOnce(context.Background(), rng)
	if err != nil {
		// Scan failures degrade, not terminate: the previous snapshot
		// stays authoritative and polling continues.
		m.log.Warn().Err(err).Msg("poll cycle failed")
		m.emit(Event{Type: EventMonitorError, Err: err}, stop)
		return
	}

	current := NewSnapshot(entries)

	m.stateMu.Lock()
	changes := Diff(m.snapshot, current)
	m.snapshot = current
	m.stateMu.Unlock()

	if changes.Empty() {
		return
	}

	m.log.Debug().
		Int("added", len(changes.Added)).
		Int("removed", len(changes.Removed)).
		Int("updated", len(changes.Updated)).
		Msg("port table changed")

	// Removals first so a consumer tracking occupancy never sees two
	// owners of one key at the same time.
	for i := range changes.Removed {
		m.emit(Event{Type: EventPortRemoved, Entry: &changes.Removed[i]}, stop)
	}
	for i := range changes.Added {
		m.emit(Event{Type: EventPortAdded, Entry: &changes.Added[i]}, stop)
	}
	for i := range changes.Updated {
		m.emit(Event{Type: EventPortUpdated, Entry: &changes.Updated[i]}, stop)
	}
}

func (m *Monitor) scanOnce(ctx context.Context, rng *types.PortRange) ([]types.PortInfo, error) {
	if rng != nil {
		return m.scanner.ScanPorts(ctx, rng.Start, rng.End)
	}
	return m.scanner.ScanDevPorts(ctx)
}

// emit delivers an event, waiting for buffer space if the subscriber has
// fallen behind. Stop unblocks a pending send, so a stalled subscriber
// never wedges shutdown; no event is dropped while the session lives.
func (m *Monitor) emit(ev Event, stop chan struct{}) {
	select {
	case m.events <- ev:
	case <-stop:
	}
}
