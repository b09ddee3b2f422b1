// Package monitor drains and classifies the engine's diagnostic channel.
//
// The Monitor reads the diagnostic channel line by line for the whole life of
// a session. It must never stop reading: an undrained channel fills the OS
// pipe buffer and stalls the engine. Each line is classified by a Classifier
// as benign, warning or fatal. Fatal lines, and the channel closing while the
// engine is still expected to run, are reported once through a callback.
package monitor
