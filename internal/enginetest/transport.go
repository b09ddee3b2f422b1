package enginetest

import (
	"context"
	stderrors "errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wagiedev/formlink-go/internal/config"
	"github.com/wagiedev/formlink-go/internal/errors"
)

var (
	// errKilled is delivered to the simulated engine's reads when it is killed.
	errKilled = stderrors.New("killed")
	// errTerminated is delivered to its reads when it is asked to terminate.
	errTerminated = stderrors.New("terminated")
)

// Transport is an in-memory config.Transport backed by a simulated engine
// running in a goroutine.
type Transport struct {
	opts Options

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	cancel  context.CancelFunc
	exited  chan struct{}
	exitErr error

	writeMu   sync.Mutex // serialises writes
	started   bool
	inputOnce sync.Once
	closeOnce sync.Once

	terminations atomic.Int32

	mu      sync.Mutex
	written []byte
}

// Compile-time verification that Transport implements the Transport interface.
var (
	_ config.Transport  = (*Transport)(nil)
	_ config.Terminator = (*Transport)(nil)
)

// NewTransport creates an in-memory transport for a simulated engine.
func NewTransport(opts Options) *Transport {
	return &Transport{opts: opts}
}

// Start launches the simulated engine.
func (t *Transport) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.stdinR, t.stdinW = io.Pipe()
	t.stdoutR, t.stdoutW = io.Pipe()
	t.stderrR, t.stderrW = io.Pipe()
	t.exited = make(chan struct{})

	runCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.started = true

	go func() {
		defer close(t.exited)

		t.exitErr = Serve(runCtx, t.stdinR, t.stdoutW, t.stderrW, t.opts)

		_ = t.stdinR.Close()
		_ = t.stdoutW.Close()
		_ = t.stderrW.Close()
	}()

	return nil
}

// Write sends data to the simulated engine.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if !t.started {
		return errors.ErrTransportNotStarted
	}

	done := make(chan error, 1)

	go func() {
		_, err := t.stdinW.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.mu.Lock()
			t.written = append(t.written, data...)
			t.mu.Unlock()
		}

		return err
	case <-ctx.Done():
		_ = t.stdinW.Close()

		return ctx.Err()
	}
}

// ReadChunk reads from the result or diagnostic stream.
func (t *Transport) ReadChunk(ch config.Channel, p []byte) (int, error) {
	r := t.stdoutR
	if ch == config.ChannelDiagnostic {
		r = t.stderrR
	}

	if r == nil {
		return 0, errors.ErrTransportNotStarted
	}

	n, err := r.Read(p)
	if stderrors.Is(err, io.ErrClosedPipe) {
		err = io.EOF
	}

	return n, err
}

// CloseInput closes the statement stream.
func (t *Transport) CloseInput() error {
	if t.stdinW == nil {
		return nil
	}

	t.inputOnce.Do(func() {
		_ = t.stdinW.Close()
	})

	return nil
}

// Wait waits at most timeout for the simulated engine to stop.
func (t *Transport) Wait(timeout time.Duration) bool {
	if t.exited == nil {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.exited:
		return true
	case <-timer.C:
		return false
	}
}

// Kill stops the simulated engine.
func (t *Transport) Kill() error {
	if t.cancel == nil {
		return nil
	}

	t.cancel()
	_ = t.stdinR.CloseWithError(errKilled)
	_ = t.stdoutW.Close()
	_ = t.stderrW.Close()

	return nil
}

// Terminate stops the simulated engine the way SIGTERM stops FORM: its
// input fails and a hanging engine is released. The output streams close
// when the engine returns.
func (t *Transport) Terminate() error {
	if t.cancel == nil {
		return nil
	}

	t.terminations.Add(1)
	t.cancel()
	_ = t.stdinR.CloseWithError(errTerminated)

	return nil
}

// Terminations returns how often Terminate was called.
func (t *Transport) Terminations() int {
	return int(t.terminations.Load())
}

// Close releases the host side of all streams.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if !t.started {
			return
		}

		_ = t.CloseInput()
		_ = t.stdoutR.Close()
		_ = t.stderrR.Close()
	})

	return nil
}

// Exited reports whether the simulated engine has stopped.
func (t *Transport) Exited() bool {
	if t.exited == nil {
		return false
	}

	select {
	case <-t.exited:
		return true
	default:
		return false
	}
}

// ExitErr returns what Serve returned once the engine stopped.
func (t *Transport) ExitErr() error {
	if !t.Exited() {
		return nil
	}

	return t.exitErr
}

// Written returns everything written to the engine so far.
func (t *Transport) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return string(t.written)
}
