// Package types holds the shared data model for port discovery and actions.
package types

import "fmt"

// Protocol identifies the transport protocol of a listening socket.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// PortKey uniquely identifies a listening endpoint within a snapshot.
// Two rows with the same key are the same logical entity even if the
// owning process changed between snapshots.
type PortKey struct {
	Port     int      `json:"port"`
	Protocol Protocol `json:"protocol"`
}

// Less orders keys ascending by (port, protocol).
func (k PortKey) Less(other PortKey) bool {
	if k.Port != other.Port {
		return k.Port < other.Port
	}
	return k.Protocol < other.Protocol
}

func (k PortKey) String() string {
	return fmt.Sprintf("%d/%s", k.Port, k.Protocol)
}

// PortInfo describes one observed listening endpoint and its owning process.
type PortInfo struct {
	Port        int            `json:"port"`
	Protocol    Protocol       `json:"protocol"`
	PID         int            `json:"pid,omitempty"`
	ProcessName string         `json:"processName,omitempty"`
	CommandLine string         `json:"commandLine,omitempty"`
	State       string         `json:"state,omitempty"`
	Framework   *FrameworkInfo `json:"framework,omitempty"`
}

// Key returns the identity key of the entry.
func (p PortInfo) Key() PortKey {
	return PortKey{Port: p.Port, Protocol: p.Protocol}
}

// SameOwner reports whether the mutable fields (pid, process name, command
// line, socket state) are identical. Entries with equal keys but different
// owners are updates, not remove+add pairs.
func (p PortInfo) SameOwner(other PortInfo) bool {
	return p.PID == other.PID &&
		p.ProcessName == other.ProcessName &&
		p.CommandLine == other.CommandLine &&
		p.State == other.State
}

// RawPortRow is one unprocessed row from a platform port query.
// The scanner normalizes raw rows into PortInfo entries.
type RawPortRow struct {
	Port        int
	Protocol    Protocol
	Address     string
	State       string
	PID         int
	ProcessName string
	CommandLine string
}

// FrameworkInfo is a best-guess descriptor of the development tool that
// opened a port, derived from process metadata.
type FrameworkInfo struct {
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"displayName" yaml:"displayName"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
	Color       string `json:"color,omitempty" yaml:"color,omitempty"`
}

// PortRange is a closed inclusive range of ports.
type PortRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Contains reports whether port lies within the range.
func (r PortRange) Contains(port int) bool {
	return port >= r.Start && port <= r.End
}

// ActionResult is the outcome of a mutating operation (kill, open).
// Failures are returned as values, never as panics or bare errors, so a
// UI-facing caller can present them without exception handling.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failure builds a failed ActionResult with an explanatory message.
func Failure(format string, args ...any) ActionResult {
	return ActionResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

// FailureErr builds a failed ActionResult carrying a structured error string.
func FailureErr(err error, format string, args ...any) ActionResult {
	res := Failure(format, args...)
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// Ok builds a successful ActionResult.
func Ok(format string, args ...any) ActionResult {
	return ActionResult{Success: true, Message: fmt.Sprintf(format, args...)}
}
