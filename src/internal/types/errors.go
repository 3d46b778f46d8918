package types

import (
	"errors"
	"fmt"
)

// Validation errors are rejected before any OS interaction.
var (
	// ErrInvalidRange reports a malformed or inverted port range.
	ErrInvalidRange = errors.New("invalid port range")

	// ErrInvalidPort reports a port outside 1-65535.
	ErrInvalidPort = errors.New("port must be between 1 and 65535")

	// ErrInvalidInterval reports a monitoring interval below the minimum.
	ErrInvalidInterval = errors.New("invalid monitoring interval")
)

// OSQueryError reports that a platform port/process query failed or timed
// out. Inside the monitor poll loop it degrades to a monitor-error event;
// outside the loop it propagates to the caller.
type OSQueryError struct {
	Op  string
	Err error
}

func (e *OSQueryError) Error() string {
	return fmt.Sprintf("os query failed: %s: %v", e.Op, e.Err)
}

func (e *OSQueryError) Unwrap() error {
	return e.Err
}

// NewOSQueryError wraps an underlying failure of the named OS facility.
func NewOSQueryError(op string, err error) *OSQueryError {
	return &OSQueryError{Op: op, Err: err}
}

// ValidatePort checks that port is within 1-65535.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, port)
	}
	return nil
}

// ValidateRange checks that start and end are valid ports and start <= end.
func ValidateRange(start, end int) error {
	if start < 1 || start > 65535 || end < 1 || end > 65535 {
		return fmt.Errorf("%w: %d-%d is outside 1-65535", ErrInvalidRange, start, end)
	}
	if start > end {
		return fmt.Errorf("%w: start %d is greater than end %d", ErrInvalidRange, start, end)
	}
	return nil
}
