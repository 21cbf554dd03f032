package server

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigurationMissing is returned when an operation needs a launch
	// descriptor and none has been set.
	ErrConfigurationMissing = errors.New("server configuration is not set")

	// ErrAlreadyRunning is returned when start is called while the
	// supervisor already owns a process or is not Offline.
	ErrAlreadyRunning = errors.New("server is already running")

	// ErrNoOwnedProcess is returned by SendCommand when the running server was
	// not started by this supervisor and its stdin is unreachable.
	ErrNoOwnedProcess = errors.New("cannot send commands to an orphaned process; only servers started by this manager accept console commands")
)

// ProcessAlreadyRunningError reports a matching server process found in the
// process table that this supervisor does not own.
type ProcessAlreadyRunningError struct {
	PID int32
}

func (e *ProcessAlreadyRunningError) Error() string {
	return fmt.Sprintf("a server process is already running in this directory (pid %d)", e.PID)
}

// LaunchError wraps a failure to prepare or spawn the server process.
type LaunchError struct {
	Reason error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch server: %v", e.Reason)
}

func (e *LaunchError) Unwrap() error { return e.Reason }

// StreamError wraps a read or write failure on one of the child's streams.
type StreamError struct {
	Op  string
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// ErrorKind groups supervisor errors for callers that map them to transport codes.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConfiguration
	KindConflict
	KindLaunch
	KindIO
	KindNotSupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindConflict:
		return "conflict"
	case KindLaunch:
		return "launch"
	case KindIO:
		return "io"
	case KindNotSupported:
		return "not_supported"
	default:
		return "unknown"
	}
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	var already *ProcessAlreadyRunningError
	var launch *LaunchError
	var stream *StreamError
	var invalid *InvalidConfigError

	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrConfigurationMissing), errors.As(err, &invalid):
		return KindConfiguration
	case errors.Is(err, ErrAlreadyRunning), errors.As(err, &already):
		return KindConflict
	case errors.As(err, &launch):
		return KindLaunch
	case errors.Is(err, ErrNoOwnedProcess):
		return KindNotSupported
	case errors.As(err, &stream):
		return KindIO
	default:
		return KindUnknown
	}
}
