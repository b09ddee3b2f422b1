// Package session drives one FORM process through write and read cycles.
//
// A Session owns a transport, a diagnostic monitor and an output pump. The
// caller's goroutine frames statements, writes them and assembles results;
// the monitor drains the diagnostic channel for the whole session so the
// engine can never stall on a full pipe, and promotes fatal lines into the
// session's fatal state.
//
// The protocol is strictly request/response. Each Write is framed with its
// own sentinel, which the next operation consumes before doing anything
// else, so at most one block is ever in flight. A Write or Read started
// while another is running fails with errors.ErrBusy; operations are never
// queued.
//
// Any failure of the engine or the stream is fatal. The first operation
// after it returns the cause; later operations return a ClosedError
// wrapping it.
package session
