// Package assembler reconstructs logical results from the engine's output
// channel.
//
// The engine's output is not self-delimiting. Each result is followed by a
// sentinel injected by the framing package; the Assembler accumulates bytes,
// strips the engine's terminal formatting (soft line wraps, continuation
// backslashes, alignment padding) and cuts the stream at the sentinel of the
// sequence number it is waiting for.
//
// One read cycle moves through the states
//
//	Idle -> Scanning -> SentinelFound -> Completed -> Idle
//
// Bytes arriving while Idle are kept but not interpreted.
package assembler
