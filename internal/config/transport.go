// Package config provides configuration types for the FORM link.
package config

import (
	"context"
	"time"
)

// Channel selects one of the engine's read channels.
type Channel int

const (
	// ChannelOutput carries results and sentinels.
	ChannelOutput Channel = iota
	// ChannelDiagnostic carries the engine's log and error messages.
	ChannelDiagnostic
)

// String returns the channel name used in logs.
func (c Channel) String() string {
	if c == ChannelDiagnostic {
		return "diagnostic"
	}

	return "output"
}

// Transport defines the byte-level connection to the engine process.
// Implement this to provide custom transports for testing or for engines
// reached some other way.
//
// The default implementation is subprocess.PipeTransport which spawns the
// engine with unnamed pipes. Custom transports can be injected via
// Options.Transport.
type Transport interface {
	// Start launches the engine and opens the channels.
	Start(ctx context.Context) error

	// Write sends data on the statement channel, blocking while the pipe is
	// full. It must be safe for concurrent use.
	Write(ctx context.Context, data []byte) error

	// ReadChunk performs one blocking read on the given channel. It returns
	// 0, io.EOF only at end of stream.
	ReadChunk(ch Channel, p []byte) (int, error)

	// CloseInput closes the statement channel. Safe to call multiple times.
	CloseInput() error

	// Wait waits at most timeout for the engine to exit and reports whether it did.
	Wait(timeout time.Duration) bool

	// Kill terminates the engine without waiting.
	Kill() error

	// Close releases all channel endpoints. It never waits for the engine to
	// exit and is safe to call multiple times.
	Close() error
}

// Terminator is implemented by transports that can ask the engine to stop
// before it is killed, with SIGTERM for a subprocess. Session close uses it
// between the grace period and Kill.
type Terminator interface {
	Terminate() error
}
