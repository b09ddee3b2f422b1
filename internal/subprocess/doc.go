// Package subprocess provides the pipe transport to a FORM process.
//
// PipeTransport implements config.Transport by spawning the engine with
// three unnamed pipes: a statement channel, a result channel and a
// diagnostic channel. Depending on config.Layout the statement and result
// pipes are the child's stdin and stdout, or descriptors 3 and 4 handed to
// FORM's -pipe mode. The transport only moves bytes and manages the process
// lifecycle; framing and interpretation belong to the session.
package subprocess
