package session

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/formlink-go/internal/assembler"
	"github.com/wagiedev/formlink-go/internal/config"
	"github.com/wagiedev/formlink-go/internal/engine"
	"github.com/wagiedev/formlink-go/internal/errors"
	"github.com/wagiedev/formlink-go/internal/framing"
	"github.com/wagiedev/formlink-go/internal/monitor"
	"github.com/wagiedev/formlink-go/internal/subprocess"
)

const (
	// chunkSize is the read size of the output pump.
	chunkSize = 32 * 1024

	// exitGrace bounds the wait for the monitor's verdict after the output
	// channel ends, so an engine error is reported instead of a bare EOF.
	exitGrace = 500 * time.Millisecond
)

// Session is one live engine process.
type Session struct {
	log       *slog.Logger
	opts      *config.Options
	transport config.Transport
	id        string

	asm *assembler.Assembler
	mon *monitor.Monitor
	eg  *errgroup.Group

	chunks  chan []byte
	pumpErr error

	seq        atomic.Uint64
	busy       atomic.Bool
	pendingAck uint64

	errMu    sync.Mutex
	fatalErr error
	reported bool
	closed   bool

	fatalOnce sync.Once
	fatal     chan struct{}

	closing   atomic.Bool
	forced    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// Open starts the engine and returns a ready session.
//
// Launching and the optional handshake are bounded by ctx and
// Options.StartTimeout. Failure to start the engine is a LaunchError.
func Open(ctx context.Context, opts *config.Options) (*Session, error) {
	if opts == nil {
		opts = &config.Options{}
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	id := ulid.Make().String()
	log = log.With("session_id", id)

	transport := opts.Transport
	if transport == nil {
		transport = subprocess.NewPipeTransport(log, opts)
	}

	s := &Session{
		log:       log.With("component", "session"),
		opts:      opts,
		transport: transport,
		id:        id,
		asm:       assembler.New(),
		chunks:    make(chan []byte),
		fatal:     make(chan struct{}),
		done:      make(chan struct{}),
	}

	s.asm.Observe(func(seq uint64, from, to assembler.State) {
		s.log.Debug("Assembler state changed", "seq", seq, "from", from, "to", to)
	})

	startCtx, cancel := context.WithTimeout(ctx, opts.StartTimeoutOrDefault())
	defer cancel()

	s.log.Info("Opening session")

	if err := transport.Start(startCtx); err != nil {
		s.log.Error("Failed to start engine", "error", err)

		return nil, fmt.Errorf("start engine: %w", err)
	}

	s.mon = monitor.New(log, channelReader{transport, config.ChannelDiagnostic}, monitor.Config{
		Classifier:   opts.Classifier(),
		Scrollback:   opts.LogScrollback,
		OnDiagnostic: opts.OnDiagnostic,
		OnFatal:      func(err *errors.FormError) { s.setFatal(err) },
		Alive:        func() bool { return !s.closing.Load() },
	})

	// Background tasks outlive Open's context; Close stops them.
	var egCtx context.Context

	s.eg, egCtx = errgroup.WithContext(context.Background())

	s.eg.Go(func() error {
		return s.mon.Run(egCtx)
	})

	s.eg.Go(func() error {
		return s.pump()
	})

	if opts.Handshake {
		if err := s.handshake(startCtx); err != nil {
			_ = s.Close()

			return nil, err
		}
	}

	s.log.Info("Session opened")

	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// Sequence returns the last sequence number issued.
func (s *Session) Sequence() uint64 {
	return s.seq.Load()
}

// Banner returns the first line the engine printed on its diagnostic channel.
func (s *Session) Banner() string {
	return s.mon.Banner()
}

// BuildDate returns the engine build date from the banner as yyyymmdd.
func (s *Session) BuildDate() (int, error) {
	return engine.ParseBannerDate(s.Banner())
}

// Log returns the kept diagnostic scrollback.
func (s *Session) Log() []string {
	return s.mon.Log()
}

// Err returns the error that made the session fatal, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	return s.fatalErr
}

// Closed reports whether the session was closed or is fatal.
func (s *Session) Closed() bool {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	return s.closed || s.fatalErr != nil
}

// Write sends a block of statements to the engine.
//
// It returns once the block is written; the engine's verdict on it is
// collected by the next operation.
func (s *Session) Write(ctx context.Context, src string) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	if err := s.drainAck(ctx, "write"); err != nil {
		return err
	}

	seq := s.seq.Add(1)

	s.log.Debug("Writing block", "seq", seq, "len", len(src))

	if err := s.send(ctx, "write", seq, framing.Frame(seq, src)); err != nil {
		return err
	}

	s.pendingAck = seq

	return nil
}

// Read returns the printed value of one expression, $-variable or
// preprocessor variable.
func (s *Session) Read(ctx context.Context, name string) (string, error) {
	results, err := s.ReadMany(ctx, name)
	if err != nil {
		return "", err
	}

	return results[0], nil
}

// ReadMany returns the printed values of several names in one round trip.
func (s *Session) ReadMany(ctx context.Context, names ...string) ([]string, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	data, err := framing.FrameRead(s.seq.Load()+1, names)
	if err != nil {
		return nil, err
	}

	if err := s.drainAck(ctx, "read"); err != nil {
		return nil, err
	}

	// drainAck issues no sequence numbers, so the framed ones are still next.
	last := s.seq.Add(uint64(len(names)))
	first := last - uint64(len(names)) + 1

	if err := s.send(ctx, "read", first, data); err != nil {
		return nil, err
	}

	ctx, cancel := s.readContext(ctx)
	defer cancel()

	results := make([]string, len(names))

	for i := range names {
		text, err := s.readUnit(ctx, "read", first+uint64(i))
		if err != nil {
			return nil, err
		}

		results[i] = text
	}

	if err := s.asm.Finish(); err != nil {
		return nil, s.fail(err)
	}

	s.log.Debug("Read completed", "first_seq", first, "count", len(names))

	return results, nil
}

// Close ends the session. It sends the goodbye statement if the engine is
// healthy and waits up to ShutdownTimeout for it to exit. An engine that
// stays is asked to terminate, if the transport supports it, and then
// killed. Close is idempotent and always returns nil.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)

		s.errMu.Lock()
		s.closed = true
		healthy := s.fatalErr == nil
		s.errMu.Unlock()

		close(s.done)

		timeout := s.opts.ShutdownTimeoutOrDefault()

		s.log.Info("Closing session", "healthy", healthy)

		forced := s.forced.Load()

		// A running operation may hold the transport's write lock.
		if healthy && !forced && !s.busy.Load() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			if err := s.transport.Write(ctx, framing.Goodbye()); err != nil {
				s.log.Debug("Goodbye not delivered", "error", err)
			}
			cancel()
		}

		_ = s.transport.CloseInput()

		s.stop(timeout, forced)

		if err := s.transport.Close(); err != nil {
			s.log.Debug("Transport close error", "error", err)
		}

		waitDone := make(chan struct{})

		go func() {
			_ = s.eg.Wait()
			close(waitDone)
		}()

		select {
		case <-waitDone:
		case <-time.After(timeout):
			s.log.Warn("Background tasks did not stop in time")
		}

		s.log.Info("Session closed")
	})

	return nil
}

// Kill ends the session at once: no goodbye, no grace period. The engine is
// killed and the transport released. Like Close it is idempotent, and it
// does nothing once the session was closed.
func (s *Session) Kill() error {
	s.forced.Store(true)

	return s.Close()
}

// stop brings the engine down. Unless forced it escalates from waiting to
// terminating to killing, each step bounded by timeout.
func (s *Session) stop(timeout time.Duration, forced bool) {
	if !forced {
		if s.transport.Wait(timeout) {
			return
		}

		if term, ok := s.transport.(config.Terminator); ok {
			s.log.Warn("Engine did not exit in time, terminating it", "timeout", timeout)

			if err := term.Terminate(); err != nil {
				s.log.Warn("Failed to terminate engine", "error", err)
			} else if s.transport.Wait(timeout) {
				return
			}
		}
	}

	s.log.Warn("Killing engine", "forced", forced)

	if err := s.transport.Kill(); err != nil {
		s.log.Warn("Failed to kill engine", "error", err)
	}

	if !s.transport.Wait(timeout) {
		s.log.Error("Engine still running after kill")
	}
}

// begin claims the session for one operation.
func (s *Session) begin() error {
	if !s.busy.CompareAndSwap(false, true) {
		return errors.ErrBusy
	}

	if err := s.check(); err != nil {
		s.busy.Store(false)

		return err
	}

	return nil
}

func (s *Session) end() {
	s.busy.Store(false)
}

// check returns the error an operation must fail with, if any. The fatal
// cause is returned once; afterwards it is wrapped in a ClosedError.
func (s *Session) check() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	if s.fatalErr != nil {
		if !s.reported {
			s.reported = true

			return s.fatalErr
		}

		return &errors.ClosedError{Cause: s.fatalErr}
	}

	if s.closed {
		return &errors.ClosedError{}
	}

	return nil
}

// setFatal records the first fatal error, wakes a waiting read and kills
// the engine.
func (s *Session) setFatal(err error) {
	s.errMu.Lock()
	if s.fatalErr != nil || s.closed {
		s.errMu.Unlock()

		return
	}

	s.fatalErr = err
	s.errMu.Unlock()

	s.log.Error("Session entered fatal state", "error", err)

	s.fatalOnce.Do(func() { close(s.fatal) })

	if kerr := s.transport.Kill(); kerr != nil {
		s.log.Debug("Failed to kill engine", "error", kerr)
	}
}

// fail makes err fatal and returns the error the current operation reports:
// the first fatal cause, which may have been raised by the monitor.
func (s *Session) fail(err error) error {
	s.setFatal(err)

	s.errMu.Lock()
	defer s.errMu.Unlock()

	if s.fatalErr == nil {
		// Closed concurrently.
		return &errors.ClosedError{Cause: err}
	}

	s.reported = true

	return s.fatalErr
}

// readContext applies Options.ReadTimeout on top of ctx.
func (s *Session) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.ReadTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.ReadTimeout)
	}

	return context.WithCancel(ctx)
}

// send writes framed bytes. Any failure leaves the stream in an unknown
// state and is fatal.
func (s *Session) send(ctx context.Context, op string, seq uint64, data []byte) error {
	err := s.transport.Write(ctx, data)
	if err == nil {
		return nil
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return s.fail(&errors.TimeoutError{Op: op, Sequence: seq, Err: err})
	}

	if !stderrors.Is(err, context.Canceled) {
		// A broken pipe usually means the engine stopped on an error.
		s.awaitVerdict()
	}

	return s.fail(fmt.Errorf("%s (seq %d): %w", op, seq, err))
}

// awaitVerdict waits a short time for the monitor to explain a failure.
func (s *Session) awaitVerdict() {
	timer := time.NewTimer(exitGrace)
	defer timer.Stop()

	select {
	case <-s.fatal:
	case <-s.mon.Done():
	case <-s.done:
	case <-timer.C:
	}
}

// drainAck consumes the sentinel of the last written block. Output around
// it, or any output while nothing was pending, was never asked for.
func (s *Session) drainAck(ctx context.Context, op string) error {
	seq := s.pendingAck
	if seq == 0 {
		s.absorb()

		if err := s.asm.Unsolicited(s.seq.Load()); err != nil {
			return s.fail(err)
		}

		return nil
	}

	s.pendingAck = 0

	ctx, cancel := s.readContext(ctx)
	defer cancel()

	text, err := s.readUnit(ctx, op, seq)
	if err != nil {
		return err
	}

	if text != "" {
		return s.fail(&errors.ProtocolError{
			Sequence: seq,
			Reason:   "unsolicited output",
			Data:     text,
		})
	}

	if err := s.asm.Finish(); err != nil {
		return s.fail(err)
	}

	return nil
}

// absorb buffers output that is already waiting while no read is outstanding.
func (s *Session) absorb() {
	for {
		select {
		case chunk, open := <-s.chunks:
			if !open {
				return
			}

			_, _, _ = s.asm.Feed(chunk)
		default:
			return
		}
	}
}

// readUnit assembles output up to the sentinel of seq.
func (s *Session) readUnit(ctx context.Context, op string, seq uint64) (string, error) {
	if err := s.asm.Begin(seq); err != nil {
		return "", s.fail(err)
	}

	// Look-ahead from the previous cycle is scanned first.
	text, ok, err := s.asm.Feed(nil)

	for !ok {
		if err != nil {
			return "", s.fail(err)
		}

		select {
		case chunk, open := <-s.chunks:
			if !open {
				return "", s.outputClosed(seq)
			}

			text, ok, err = s.asm.Feed(chunk)

		case <-s.fatal:
			return "", s.fail(s.Err())

		case <-s.done:
			return "", &errors.ClosedError{}

		case <-ctx.Done():
			s.log.Debug("Wait abandoned", "op", op, "seq", seq, "error", ctx.Err())

			if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", s.fail(&errors.TimeoutError{Op: op, Sequence: seq, Err: ctx.Err()})
			}

			return "", s.fail(fmt.Errorf("%s (seq %d): %w", op, seq, ctx.Err()))
		}
	}

	if err != nil {
		return "", s.fail(err)
	}

	return text, nil
}

// outputClosed handles the end of the output channel during a read.
func (s *Session) outputClosed(seq uint64) error {
	s.awaitVerdict()

	return s.fail(&errors.FormError{
		Message: fmt.Sprintf("engine closed its output while waiting for seq %d", seq),
		Log:     s.mon.Log(),
		Err:     s.pumpErr,
	})
}

// pump moves raw output chunks from the transport to the reading caller.
// Once the session is closing it keeps draining so the engine can finish
// writing and exit.
func (s *Session) pump() error {
	defer close(s.chunks)
	defer s.log.Debug("Output pump stopped")

	for {
		buf := make([]byte, chunkSize)

		n, err := s.transport.ReadChunk(config.ChannelOutput, buf)
		if n > 0 {
			select {
			case s.chunks <- buf[:n]:
			case <-s.done:
			}
		}

		if err != nil {
			if !stderrors.Is(err, io.EOF) {
				s.pumpErr = err
			}

			return nil
		}
	}
}

// handshake performs FORM's startup exchange: the engine announces its pid,
// the host answers with "pid,ppid" and the engine confirms with "OK".
func (s *Session) handshake(ctx context.Context) error {
	var buf []byte

	for bytes.IndexByte(buf, '\n') < 0 {
		chunk, err := s.receive(ctx)
		if err != nil {
			return s.handshakeError("read pid", err)
		}

		buf = append(buf, chunk...)
	}

	i := bytes.IndexByte(buf, '\n')
	pid := string(bytes.TrimSpace(buf[:i]))
	buf = buf[i+1:]

	s.log.Debug("Engine announced pid", "engine_pid", pid)

	if err := s.transport.Write(ctx, framing.HandshakeReply(pid, os.Getpid())); err != nil {
		return s.handshakeError("reply", err)
	}

	for len(buf) < len(framing.HandshakeOK) {
		chunk, err := s.receive(ctx)
		if err != nil {
			return s.handshakeError("read greeting", err)
		}

		buf = append(buf, chunk...)
	}

	if !bytes.HasPrefix(buf, []byte(framing.HandshakeOK)) {
		return s.handshakeError("read greeting", fmt.Errorf("got %q", buf))
	}

	// Anything after the greeting is output; keep it for the first read.
	if _, _, err := s.asm.Feed(buf[len(framing.HandshakeOK):]); err != nil {
		return s.handshakeError("read greeting", err)
	}

	setup := framing.PromptDirective()
	if s.opts.LogScrollback == 0 {
		setup = append(setup, framing.ListingOff()...)
	}

	if err := s.transport.Write(ctx, setup); err != nil {
		return s.handshakeError("setup", err)
	}

	s.log.Debug("Handshake completed", "engine_pid", pid)

	return nil
}

// receive returns the next output chunk outside a read cycle.
func (s *Session) receive(ctx context.Context) ([]byte, error) {
	select {
	case chunk, open := <-s.chunks:
		if !open {
			return nil, io.ErrUnexpectedEOF
		}

		return chunk, nil
	case <-s.fatal:
		return nil, s.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) handshakeError(step string, err error) error {
	if fatal := s.Err(); fatal != nil {
		return fatal
	}

	return &errors.LaunchError{
		Executable: s.opts.Executable,
		Err:        fmt.Errorf("%w: %s: %w", errors.ErrHandshake, step, err),
	}
}

// channelReader adapts one transport channel to io.Reader for the monitor.
type channelReader struct {
	t  config.Transport
	ch config.Channel
}

func (r channelReader) Read(p []byte) (int, error) {
	return r.t.ReadChunk(r.ch, p)
}
