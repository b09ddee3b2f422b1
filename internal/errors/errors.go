package errors

import (
	"errors"
	"fmt"
	"strings"
)

// FormLinkError is the base interface for all formlink errors.
type FormLinkError interface {
	error
	IsFormLinkError() bool
}

// Compile-time verification that all error types implement FormLinkError.
var (
	_ FormLinkError = (*LaunchError)(nil)
	_ FormLinkError = (*FormError)(nil)
	_ FormLinkError = (*ProtocolError)(nil)
	_ FormLinkError = (*TimeoutError)(nil)
	_ FormLinkError = (*ClosedError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrClosed indicates the session was closed or entered the fatal state.
	ErrClosed = errors.New("session closed")

	// ErrBusy indicates another Write or Read is still in progress on the session.
	// Operations are never queued; the caller must wait for the first one to return.
	ErrBusy = errors.New("session busy: another operation is in progress")

	// ErrTransportNotStarted indicates the transport has not been started.
	ErrTransportNotStarted = errors.New("transport not started")

	// ErrInputClosed indicates the statement channel was closed.
	ErrInputClosed = errors.New("input channel closed")

	// ErrHandshake indicates the engine did not complete the startup handshake.
	ErrHandshake = errors.New("engine handshake failed")

	// ErrNotExecutable indicates the configured engine path is not a runnable file.
	ErrNotExecutable = errors.New("not an executable file")
)

// LaunchError indicates the engine process could not be started.
type LaunchError struct {
	Executable    string
	SearchedPaths []string
	Err           error
}

func (e *LaunchError) Error() string {
	if len(e.SearchedPaths) > 0 {
		return fmt.Sprintf("launch %q: not found in: %v", e.Executable, e.SearchedPaths)
	}

	return fmt.Sprintf("launch %q: %v", e.Executable, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// IsFormLinkError implements FormLinkError.
func (e *LaunchError) IsFormLinkError() bool { return true }

// FormError indicates the engine reported an error or stopped unexpectedly.
//
// Message is the diagnostic line verbatim. Log holds the kept scrollback,
// if any, ending with the line that triggered the error.
type FormError struct {
	Message string
	Log     []string
	Err     error
}

func (e *FormError) Error() string {
	var b strings.Builder

	b.WriteString("form: ")
	b.WriteString(e.Message)

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	if len(e.Log) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(e.Log, "\n"))
	}

	return b.String()
}

func (e *FormError) Unwrap() error {
	return e.Err
}

// IsFormLinkError implements FormLinkError.
func (e *FormError) IsFormLinkError() bool { return true }

// ProtocolError indicates the output stream did not match the framing.
type ProtocolError struct {
	Sequence uint64
	Reason   string
	Data     string
}

func (e *ProtocolError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("protocol error (seq %d): %s: %q", e.Sequence, e.Reason, e.Data)
	}

	return fmt.Sprintf("protocol error (seq %d): %s", e.Sequence, e.Reason)
}

// IsFormLinkError implements FormLinkError.
func (e *ProtocolError) IsFormLinkError() bool { return true }

// TimeoutError indicates a deadline elapsed while waiting on the engine.
type TimeoutError struct {
	Op       string
	Sequence uint64
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out (seq %d): %v", e.Op, e.Sequence, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// IsFormLinkError implements FormLinkError.
func (e *TimeoutError) IsFormLinkError() bool { return true }

// ClosedError indicates an operation on a closed or failed session.
// Cause is the error that made the session fatal, nil after a plain Close.
//
// ClosedError unwraps to Cause, so errors.Is and errors.AsType also match
// the original failure, such as a TimeoutError or context.DeadlineExceeded.
// Check ErrClosed first to tell a later operation from the one that failed.
type ClosedError struct {
	Cause error
}

func (e *ClosedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("session closed: %v", e.Cause)
	}

	return "session closed"
}

func (e *ClosedError) Unwrap() error {
	return e.Cause
}

// Is reports ErrClosed as a match so callers can use errors.Is(err, ErrClosed).
func (e *ClosedError) Is(target error) bool {
	return target == ErrClosed
}

// IsFormLinkError implements FormLinkError.
func (e *ClosedError) IsFormLinkError() bool { return true }
