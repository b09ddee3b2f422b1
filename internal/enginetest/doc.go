// Package enginetest provides a simulated FORM engine for tests.
//
// The simulated engine understands just enough of FORM's external mode to
// drive a session: it greets the host, reads blocks terminated by the prompt
// line, stores expressions, $-variables and preprocessor variables, and
// answers #toexternal directives on the result channel. Statements it does
// not recognise are reported the way FORM reports errors and stop it.
//
// Serve runs the engine on arbitrary streams. Transport wraps it in an
// in-memory config.Transport. Main runs it as a helper process so tests can
// exercise the real subprocess transport by re-executing the test binary.
package enginetest
