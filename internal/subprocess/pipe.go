package subprocess

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/wagiedev/formlink-go/internal/config"
	"github.com/wagiedev/formlink-go/internal/engine"
	"github.com/wagiedev/formlink-go/internal/errors"
)

// writeAbandonTimeout bounds the wait for a write goroutine after its pipe
// was closed on cancellation.
const writeAbandonTimeout = 1 * time.Second

// PipeTransport implements Transport by spawning the engine with three
// unnamed pipes.
type PipeTransport struct {
	log     *slog.Logger
	options *config.Options

	cmd     *exec.Cmd
	path    string
	args    []string
	exited  chan struct{}
	exitErr error

	input       io.WriteCloser
	output      io.ReadCloser
	diagnostics io.ReadCloser

	mu          sync.Mutex // serialises writes
	inputOnce   sync.Once
	inputErr    error
	inputClosed atomic.Bool
	closeOnce   sync.Once
	closing     atomic.Bool
}

// Compile-time verification that PipeTransport implements the Transport interface.
var (
	_ config.Transport  = (*PipeTransport)(nil)
	_ config.Terminator = (*PipeTransport)(nil)
)

// NewPipeTransport creates a transport for the engine configured in options.
//
// Discovery is deferred to Start, which returns a LaunchError if the engine
// cannot be located or started.
func NewPipeTransport(log *slog.Logger, options *config.Options) *PipeTransport {
	return &PipeTransport{
		log:     log.With("component", "pipe_transport"),
		options: options,
	}
}

// Start resolves the engine, creates the pipes and spawns the process.
//
// The child ends of the pipes are closed in the parent once the child holds
// them, so end of stream on a read channel means the engine has gone.
func (t *PipeTransport) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.log.Info("Starting FORM subprocess", "layout", t.options.Layout)

	resolved, err := engine.NewDiscoverer(&engine.Config{
		Executable: t.options.Executable,
		Logger:     t.log,
	}).Discover()
	if err != nil {
		return fmt.Errorf("discover engine: %w", err)
	}

	initFile := t.options.InitFile
	if initFile == "" && t.options.Layout == config.LayoutPipeFD {
		initFile, err = engine.WriteInitScript(engine.DefaultInitDir())
		if err != nil {
			return &errors.LaunchError{Executable: resolved.Path, Err: err}
		}
	}

	t.path = resolved.Path
	t.args = engine.BuildArgs(resolved.Args, t.options, initFile)
	t.log.Debug("Built command arguments", "path", t.path, "args", t.args)

	p, err := openPipes()
	if err != nil {
		return &errors.LaunchError{Executable: t.path, Err: err}
	}

	//nolint:gosec // G204: the engine command is configured by the caller
	cmd := exec.Command(t.path, t.args...)
	cmd.Env = engine.BuildEnvironment(t.options)

	if t.options.Cwd != "" {
		cmd.Dir = t.options.Cwd
	}

	switch t.options.Layout {
	case config.LayoutPipeFD:
		cmd.ExtraFiles = []*os.File{p.childIn, p.childOut}
		cmd.Stdout = p.childDiag
		cmd.Stderr = p.childDiag
	default:
		cmd.Stdin = p.childIn
		cmd.Stdout = p.childOut
		cmd.Stderr = p.childDiag
	}

	if err := cmd.Start(); err != nil {
		p.closeAll()
		t.log.Error("Failed to start FORM process", "error", err)

		return &errors.LaunchError{Executable: t.path, Err: err}
	}

	p.closeChild()

	t.cmd = cmd
	t.input = p.parentIn
	t.output = p.parentOut
	t.diagnostics = p.parentDiag
	t.exited = make(chan struct{})

	go func() {
		t.exitErr = cmd.Wait()
		close(t.exited)

		if t.closing.Load() {
			t.log.Debug("FORM process exited during shutdown")

			return
		}

		t.log.Debug("FORM process exited", "error", t.exitErr)
	}()

	t.log.Info("FORM subprocess started", "pid", cmd.Process.Pid)

	return nil
}

// Write sends data on the statement channel.
//
// Writes are serialised and block while the pipe is full. If ctx is
// cancelled during a blocked write the statement channel is closed to
// release it; later writes return ErrInputClosed.
func (t *PipeTransport) Write(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.input == nil {
		return errors.ErrTransportNotStarted
	}

	if t.inputClosed.Load() {
		return errors.ErrInputClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Writing to engine", "data_len", len(data))

	done := make(chan error, 1)

	go func() {
		_, err := t.input.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Debug("Failed to write to engine", "error", err)

			if t.inputClosed.Load() {
				return errors.ErrInputClosed
			}

			return fmt.Errorf("write to engine: %w", err)
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing input")

		_ = t.CloseInput()

		select {
		case <-done:
		case <-time.After(writeAbandonTimeout):
			t.log.Warn("Write goroutine did not exit after input close, potential leak")
		}

		return ctx.Err()
	}
}

// ReadChunk performs one blocking read on ch.
//
// Reads on a transport that was closed report io.EOF.
func (t *PipeTransport) ReadChunk(ch config.Channel, p []byte) (int, error) {
	r := t.output
	if ch == config.ChannelDiagnostic {
		r = t.diagnostics
	}

	if r == nil {
		return 0, errors.ErrTransportNotStarted
	}

	n, err := r.Read(p)
	if err != nil && n == 0 && stderrors.Is(err, os.ErrClosed) {
		return 0, io.EOF
	}

	return n, err
}

// CloseInput closes the statement channel. The engine sees end of input.
func (t *PipeTransport) CloseInput() error {
	if t.input == nil {
		return nil
	}

	t.inputOnce.Do(func() {
		t.log.Debug("Closing input pipe")

		t.inputClosed.Store(true)
		t.inputErr = t.input.Close()
	})

	return t.inputErr
}

// Wait waits at most timeout for the process to exit.
// An unstarted transport has nothing to wait for and reports true.
func (t *PipeTransport) Wait(timeout time.Duration) bool {
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

// Exited reports whether the process has exited.
func (t *PipeTransport) Exited() bool {
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

// ExitErr returns the process exit status once it has exited.
func (t *PipeTransport) ExitErr() error {
	if !t.Exited() {
		return nil
	}

	return t.exitErr
}

// Pid returns the engine process ID, or 0 before Start.
func (t *PipeTransport) Pid() int {
	if t.cmd == nil || t.cmd.Process == nil {
		return 0
	}

	return t.cmd.Process.Pid
}

// Terminate sends SIGTERM. Signalling an exited process is not an error.
func (t *PipeTransport) Terminate() error {
	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}

	t.closing.Store(true)
	t.log.Debug("Terminating FORM process", "pid", t.cmd.Process.Pid)

	err := t.cmd.Process.Signal(syscall.SIGTERM)
	if err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("terminate FORM process (pid %d): %w", t.cmd.Process.Pid, err)
	}

	return nil
}

// Kill terminates the process with SIGKILL. Killing an exited process is not
// an error.
func (t *PipeTransport) Kill() error {
	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}

	t.closing.Store(true)
	t.log.Debug("Killing FORM process", "pid", t.cmd.Process.Pid)

	err := t.cmd.Process.Kill()
	if err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill FORM process (pid %d): %w", t.cmd.Process.Pid, err)
	}

	return nil
}

// Close releases all parent pipe endpoints. It never waits for the process.
func (t *PipeTransport) Close() error {
	var errs []error

	t.closeOnce.Do(func() {
		t.closing.Store(true)

		if err := t.CloseInput(); err != nil {
			errs = append(errs, fmt.Errorf("close input: %w", err))
		}

		for _, r := range []io.Closer{t.output, t.diagnostics} {
			if r == nil {
				continue
			}

			if err := r.Close(); err != nil && !stderrors.Is(err, os.ErrClosed) {
				errs = append(errs, err)
			}
		}
	})

	return stderrors.Join(errs...)
}

// pipeSet holds both ends of the three channels during Start.
type pipeSet struct {
	childIn, parentIn     *os.File
	parentOut, childOut   *os.File
	parentDiag, childDiag *os.File
}

func openPipes() (*pipeSet, error) {
	var (
		p   pipeSet
		err error
	)

	if p.childIn, p.parentIn, err = os.Pipe(); err != nil {
		return nil, fmt.Errorf("input pipe: %w", err)
	}

	if p.parentOut, p.childOut, err = os.Pipe(); err != nil {
		p.closeAll()

		return nil, fmt.Errorf("output pipe: %w", err)
	}

	if p.parentDiag, p.childDiag, err = os.Pipe(); err != nil {
		p.closeAll()

		return nil, fmt.Errorf("diagnostic pipe: %w", err)
	}

	return &p, nil
}

// closeChild closes the ends now owned by the child process.
func (p *pipeSet) closeChild() {
	for _, f := range []*os.File{p.childIn, p.childOut, p.childDiag} {
		if f != nil {
			_ = f.Close()
		}
	}
}

func (p *pipeSet) closeAll() {
	p.closeChild()

	for _, f := range []*os.File{p.parentIn, p.parentOut, p.parentDiag} {
		if f != nil {
			_ = f.Close()
		}
	}
}
