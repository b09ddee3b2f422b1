// Package framing builds the byte sequences sent to the engine.
//
// Every statement block is followed by a directive that makes the engine
// print a sentinel, __END_<seq>__, once the block has been consumed, and by
// the prompt line that ends the engine's current read of external input.
// All functions are pure: they perform no I/O and keep no state.
package framing
