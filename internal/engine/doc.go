// Package engine resolves the FORM executable and builds its command line.
//
// # Executable Resolution
//
// The Discoverer locates the engine:
//
//	discoverer := engine.NewDiscoverer(&engine.Config{
//	    Executable: "",        // Optional explicit command, e.g. "tform -w4"
//	    Logger:     slog.Default(),
//	})
//	cmd, err := discoverer.Discover()
//
// Resolution follows this order:
//  1. Explicit command in Config.Executable (if provided)
//  2. The FORM environment variable
//  3. DefaultExecutable ("form") looked up in PATH
//
// A command may carry its own flags; they are split on whitespace.
//
// # Command Building
//
//	args := engine.BuildArgs(cmd.Args, options, initFile)
//	env := engine.BuildEnvironment(options)
//
// # Init Script
//
// FORM's external mode needs a startup script that greets the host and loops
// over #fromexternal. InitScript holds the one used by this package and
// WriteInitScript installs it into a cache directory.
package engine
