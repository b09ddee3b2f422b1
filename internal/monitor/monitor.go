package monitor

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/wagiedev/formlink-go/internal/errors"
)

const (
	// maxLineSize is the longest prefix of a diagnostic line that is kept.
	// The rest of a longer line is read and dropped.
	maxLineSize = 1024 * 1024 // 1MB
	// readBufferSize is the size of the diagnostic read buffer.
	readBufferSize = 64 * 1024
	// maxUnlimitedScrollback caps the scrollback when it is configured as unlimited.
	maxUnlimitedScrollback = 1 << 16
)

// Config configures a Monitor.
type Config struct {
	// Classifier classifies lines. Defaults to DefaultClassifier.
	Classifier *Classifier

	// Scrollback is the number of lines kept for FormError.Log.
	// Zero keeps nothing, a negative value keeps everything.
	Scrollback int

	// OnDiagnostic, if set, receives every line after classification.
	OnDiagnostic func(Diagnostic)

	// OnFatal receives the first fatal condition. It is called at most once.
	OnFatal func(*errors.FormError)

	// Alive reports whether the engine is still expected to run. End of
	// stream while Alive returns true is fatal. A nil Alive means always.
	Alive func() bool
}

// Monitor drains one diagnostic stream.
type Monitor struct {
	log *slog.Logger
	r   io.Reader
	cfg Config

	mu       sync.Mutex
	banner   string
	lines    []string
	reported bool

	done chan struct{}
}

// New creates a monitor reading from r.
func New(log *slog.Logger, r io.Reader, cfg Config) *Monitor {
	if cfg.Classifier == nil {
		cfg.Classifier = DefaultClassifier()
	}

	return &Monitor{
		log:  log.With("component", "monitor"),
		r:    r,
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Run drains the stream until end of stream or a read error.
//
// It keeps reading after a fatal line so the engine can never block on a
// full diagnostic pipe. A line longer than maxLineSize is classified by its
// prefix and the remainder is discarded. The context is checked between lines; the blocking
// read itself is released by closing the underlying stream.
func (m *Monitor) Run(ctx context.Context) error {
	defer close(m.done)
	defer m.log.Debug("Diagnostic monitor stopped")

	reader := bufio.NewReaderSize(m.r, readBufferSize)

	var (
		line []byte
		err  error
	)

	for {
		var chunk []byte

		chunk, err = reader.ReadSlice('\n')
		if room := maxLineSize - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}

		if stderrors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if len(line) > 0 {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			m.handle(strings.TrimRight(string(line), "\r\n"))
		}

		line = line[:0]

		if err != nil {
			break
		}
	}

	if stderrors.Is(err, io.EOF) {
		err = nil
	} else {
		m.log.Debug("Diagnostic read error", "error", err)
	}

	if m.cfg.Alive == nil || m.cfg.Alive() {
		m.report(&errors.FormError{
			Message: "engine exited unexpectedly",
			Log:     m.Log(),
			Err:     err,
		})
	}

	return nil
}

// handle classifies and records one line.
func (m *Monitor) handle(line string) {
	d := m.cfg.Classifier.Classify(line)

	m.mu.Lock()
	if m.banner == "" && strings.TrimSpace(line) != "" {
		m.banner = strings.TrimSpace(line)
	}

	m.appendLocked(line)
	m.mu.Unlock()

	switch d.Class {
	case ClassFatal:
		m.log.Error("Engine reported an error", "line", line)
		m.report(&errors.FormError{Message: line, Log: m.Log()})
	case ClassWarning:
		m.log.Warn("Engine warning", "line", line)
	default:
		m.log.Debug("Engine diagnostic", "line", line)
	}

	if m.cfg.OnDiagnostic != nil {
		m.cfg.OnDiagnostic(d)
	}
}

// appendLocked adds a line to the scrollback. Caller must hold m.mu.
func (m *Monitor) appendLocked(line string) {
	limit := m.cfg.Scrollback
	if limit == 0 {
		return
	}

	if limit < 0 {
		limit = maxUnlimitedScrollback
	}

	m.lines = append(m.lines, line)
	if over := len(m.lines) - limit; over > 0 {
		m.lines = append(m.lines[:0], m.lines[over:]...)
	}
}

// report forwards the first fatal condition.
func (m *Monitor) report(err *errors.FormError) {
	m.mu.Lock()
	if m.reported {
		m.mu.Unlock()

		return
	}

	m.reported = true
	m.mu.Unlock()

	if m.cfg.OnFatal != nil {
		m.cfg.OnFatal(err)
	}
}

// Banner returns the first non-empty diagnostic line, the engine's version
// banner for FORM.
func (m *Monitor) Banner() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.banner
}

// Log returns a copy of the kept scrollback.
func (m *Monitor) Log() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.lines) == 0 {
		return nil
	}

	return append([]string(nil), m.lines...)
}

// Done is closed when Run returns.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}
