package formlink

import (
	"context"

	"github.com/wagiedev/formlink-go/internal/session"
)

// Session is a live FORM engine process.
//
// Lifecycle: a Session is single-use. After Close, or after any fatal error,
// open a new one.
type Session interface {
	// ID returns the session identifier used in logs.
	ID() string

	// Write sends a block of statements. It returns once the block is
	// written; an engine error in it is reported by the next operation.
	Write(ctx context.Context, src string) error

	// Read returns the printed value of an expression (F), a $-variable
	// ($x), a factorized $-variable ($x[]) or a preprocessor variable (`A').
	// Whitespace, line breaks and continuation backslashes are removed.
	Read(ctx context.Context, name string) (string, error)

	// ReadMany reads several names in one round trip.
	ReadMany(ctx context.Context, names ...string) ([]string, error)

	// Sequence returns the last sequence number issued.
	Sequence() uint64

	// Banner returns the engine's version banner, once printed.
	Banner() string

	// BuildDate returns the engine build date from the banner as yyyymmdd.
	BuildDate() (int, error)

	// Log returns the kept diagnostic scrollback.
	Log() []string

	// Err returns the error that made the session fatal, if any.
	Err() error

	// Closed reports whether the session was closed or is fatal.
	Closed() bool

	// Close stops the engine: goodbye, then SIGTERM and SIGKILL if it does
	// not exit in time. Safe to call multiple times; always returns nil.
	Close() error

	// Kill stops the engine at once, skipping the goodbye and grace period.
	// After Close it does nothing.
	Kill() error
}

// Compile-time check that the internal session implements Session.
var _ Session = (*session.Session)(nil)

// Open starts a FORM engine and returns a ready session.
//
// Returns LaunchError if the engine cannot be started or does not complete
// the handshake.
func Open(ctx context.Context, opts ...Option) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := session.Open(ctx, applyOptions(opts))
	if err != nil {
		return nil, err
	}

	return s, nil
}
