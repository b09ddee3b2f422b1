package assembler

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/wagiedev/formlink-go/internal/errors"
	"github.com/wagiedev/formlink-go/internal/framing"
)

// maxReportedData bounds the stray bytes quoted in a ProtocolError.
const maxReportedData = 256

var (
	sentinelPrefix = []byte(framing.SentinelPrefix)
	sentinelSuffix = []byte(framing.SentinelSuffix)
)

// State is the position of the Assembler in a read cycle.
type State int

const (
	// StateIdle means no unit is expected; incoming bytes are only buffered.
	StateIdle State = iota
	// StateScanning means bytes are accumulated while looking for a sentinel.
	StateScanning
	// StateSentinelFound means the expected sentinel was located.
	StateSentinelFound
	// StateCompleted means the unit text is final and about to be handed out.
	StateCompleted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateSentinelFound:
		return "sentinel-found"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Assembler is the per-session output decoder. It is not safe for
// concurrent use; the session drives it from the goroutine performing a read.
type Assembler struct {
	state State
	seq   uint64

	// buf is the result buffer while Scanning and the look-ahead while Idle.
	buf []byte
	// from is where the next sentinel search starts.
	from int

	observe func(seq uint64, from, to State)
}

// New creates an idle Assembler.
func New() *Assembler {
	return &Assembler{}
}

// Observe registers fn to be called on every state change.
func (a *Assembler) Observe(fn func(seq uint64, from, to State)) {
	a.observe = fn
}

// State returns the current state.
func (a *Assembler) State() State {
	return a.state
}

// Buffered returns the number of decoded bytes held but not yet handed out.
func (a *Assembler) Buffered() int {
	return len(a.buf)
}

// Begin starts scanning for the sentinel of seq. Bytes already buffered are
// treated as the start of the unit; call Feed(nil) to scan them.
func (a *Assembler) Begin(seq uint64) error {
	if a.state != StateIdle {
		return &errors.ProtocolError{
			Sequence: seq,
			Reason:   fmt.Sprintf("begin while %s for seq %d", a.state, a.seq),
		}
	}

	a.seq = seq
	a.from = 0
	a.transition(StateScanning)

	return nil
}

// Feed appends a chunk of raw output and, while Scanning, looks for the
// expected sentinel. When it is found, Feed returns the unit text with done
// set; bytes after the sentinel stay buffered as look-ahead and the
// Assembler is Idle again.
func (a *Assembler) Feed(chunk []byte) (string, bool, error) {
	a.buf = appendNormalized(a.buf, chunk)

	if a.state != StateScanning {
		return "", false, nil
	}

	return a.scan()
}

// Finish ends a read cycle. Any look-ahead left at this point is output the
// host never asked for, which means the stream is out of step.
func (a *Assembler) Finish() error {
	if a.state != StateIdle {
		return &errors.ProtocolError{
			Sequence: a.seq,
			Reason:   fmt.Sprintf("finish while %s", a.state),
		}
	}

	if len(a.buf) == 0 {
		return nil
	}

	stray := a.take()

	return &errors.ProtocolError{
		Sequence: a.seq,
		Reason:   "unexpected output after sentinel",
		Data:     clip(stray),
	}
}

// Unsolicited returns a ProtocolError if output arrived while no read was
// outstanding, and discards it.
func (a *Assembler) Unsolicited(seq uint64) error {
	if len(a.buf) == 0 {
		return nil
	}

	stray := a.take()

	return &errors.ProtocolError{
		Sequence: seq,
		Reason:   "unsolicited output",
		Data:     clip(stray),
	}
}

// Reset drops all buffered bytes and returns to Idle.
func (a *Assembler) Reset() {
	a.buf = nil
	a.from = 0
	a.transition(StateIdle)
}

// transition moves to state to and notifies the observer.
func (a *Assembler) transition(to State) {
	from := a.state
	a.state = to

	if a.observe != nil && from != to {
		a.observe(a.seq, from, to)
	}
}

// scan looks for the next sentinel in the buffer.
func (a *Assembler) scan() (string, bool, error) {
	i := bytes.Index(a.buf[a.from:], sentinelPrefix)
	if i < 0 {
		// Keep the tail that could still grow into a prefix.
		a.from = max(len(a.buf)-len(sentinelPrefix)+1, 0)

		return "", false, nil
	}

	i += a.from
	start := i + len(sentinelPrefix)

	end := start
	for end < len(a.buf) && a.buf[end] >= '0' && a.buf[end] <= '9' {
		end++
	}

	rest := a.buf[end:]
	if len(rest) < len(sentinelSuffix) && bytes.HasPrefix(sentinelSuffix, rest) {
		// Sentinel split across chunks.
		a.from = i

		return "", false, nil
	}

	if end == start || !bytes.HasPrefix(rest, sentinelSuffix) {
		return "", false, a.fail("malformed sentinel", a.buf[i:min(len(a.buf), end+len(sentinelSuffix))])
	}

	token := a.buf[i : end+len(sentinelSuffix)]

	got, err := strconv.ParseUint(string(a.buf[start:end]), 10, 64)
	if err != nil {
		return "", false, a.fail("malformed sentinel", token)
	}

	if got != a.seq {
		return "", false, a.fail("unexpected sentinel", token)
	}

	a.transition(StateSentinelFound)

	text := string(a.buf[:i])
	a.buf = append([]byte(nil), a.buf[end+len(sentinelSuffix):]...)
	a.from = 0

	a.transition(StateCompleted)
	a.transition(StateIdle)

	return text, true, nil
}

// fail drops the cycle and reports a ProtocolError.
func (a *Assembler) fail(reason string, data []byte) error {
	err := &errors.ProtocolError{
		Sequence: a.seq,
		Reason:   reason,
		Data:     clip(data),
	}

	a.Reset()

	return err
}

// take returns and clears the buffer.
func (a *Assembler) take() []byte {
	b := a.buf
	a.buf = nil
	a.from = 0

	return b
}

// appendNormalized appends chunk to dst without the engine's display
// formatting: line breaks, continuation backslashes and padding.
func appendNormalized(dst, chunk []byte) []byte {
	for _, c := range chunk {
		switch c {
		case '\n', '\r', '\\', ' ', '\t':
			continue
		}

		dst = append(dst, c)
	}

	return dst
}

func clip(b []byte) string {
	if len(b) > maxReportedData {
		return string(b[:maxReportedData]) + "..."
	}

	return string(b)
}
