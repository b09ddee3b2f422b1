// Package errors defines error types for the FORM link.
//
// This package provides structured error types for the failure classes of a
// session: launch failures, engine-reported errors, protocol
// desynchronisation, timeouts and use after close. All error types support
// error unwrapping and can be checked using errors.Is, errors.As, and
// errors.AsType.
package errors
