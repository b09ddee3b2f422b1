package formlink

import "github.com/wagiedev/formlink-go/internal/errors"

// Re-export error types from internal package

// FormLinkError is the base interface for all formlink errors.
type FormLinkError = errors.FormLinkError

// LaunchError indicates the engine could not be started.
type LaunchError = errors.LaunchError

// FormError indicates the engine reported an error or stopped unexpectedly.
type FormError = errors.FormError

// ProtocolError indicates the engine output did not match the framing.
type ProtocolError = errors.ProtocolError

// TimeoutError indicates a deadline elapsed while waiting on the engine.
type TimeoutError = errors.TimeoutError

// ClosedError indicates an operation on a closed or failed session. It
// unwraps to the error that made the session fatal; check ErrClosed before
// matching on the cause.
type ClosedError = errors.ClosedError

// Re-export sentinel errors from internal package.
var (
	// ErrClosed matches every ClosedError.
	ErrClosed = errors.ErrClosed

	// ErrBusy indicates another operation is in progress on the session.
	ErrBusy = errors.ErrBusy

	// ErrHandshake indicates the engine did not complete the startup handshake.
	ErrHandshake = errors.ErrHandshake

	// ErrNotExecutable indicates the configured engine path is not runnable.
	ErrNotExecutable = errors.ErrNotExecutable

	// ErrTransportNotStarted indicates the transport has not been started.
	ErrTransportNotStarted = errors.ErrTransportNotStarted

	// ErrInputClosed indicates the statement channel was closed.
	ErrInputClosed = errors.ErrInputClosed
)
