package formlink

import (
	"log/slog"
	"time"

	"github.com/wagiedev/formlink-go/internal/config"
	"github.com/wagiedev/formlink-go/internal/monitor"
)

// Options configures a session. See the With* functions.
type Options = config.Options

// Option configures Options using the functional options pattern.
type Option func(*Options)

// Layout selects how the engine's channels map to its file descriptors.
type Layout = config.Layout

const (
	// LayoutStdio uses stdin, stdout and stderr.
	LayoutStdio = config.LayoutStdio
	// LayoutPipeFD uses descriptors 3 and 4 with FORM's "-pipe 3,4" mode.
	LayoutPipeFD = config.LayoutPipeFD
)

// Defaults.
const (
	DefaultExecutable      = config.DefaultExecutable
	ExecutableEnvVar       = config.ExecutableEnvVar
	DefaultStartTimeout    = config.DefaultStartTimeout
	DefaultShutdownTimeout = config.DefaultShutdownTimeout
)

// Diagnostic classification.
type (
	// Class is the severity of a diagnostic line.
	Class = monitor.Class
	// Rule maps a substring or regular expression to a Class.
	Rule = monitor.Rule
	// Diagnostic is one classified line of the diagnostic channel.
	Diagnostic = monitor.Diagnostic
)

const (
	// ClassBenign lines are logged at debug level and otherwise ignored.
	ClassBenign = monitor.ClassBenign
	// ClassWarning lines are logged as warnings; the session continues.
	ClassWarning = monitor.ClassWarning
	// ClassFatal lines end the session with a FormError.
	ClassFatal = monitor.ClassFatal
)

// DefaultRules returns the built-in diagnostic classification table.
func DefaultRules() []Rule {
	return monitor.DefaultRules()
}

// applyOptions applies functional options to a fresh Options.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithExecutable sets the engine command, optionally with arguments
// ("tform -w4"). If not set, $FORM is used, then "form" on PATH.
func WithExecutable(executable string) Option {
	return func(o *Options) {
		o.Executable = executable
	}
}

// WithArgs adds engine flags placed before the layout flags.
func WithArgs(args ...string) Option {
	return func(o *Options) {
		o.Args = append(o.Args, args...)
	}
}

// WithInitFile sets the engine startup script. In LayoutPipeFD a built-in
// script is installed when none is set.
func WithInitFile(path string) Option {
	return func(o *Options) {
		o.InitFile = path
	}
}

// WithLayout selects the channel layout.
func WithLayout(layout Layout) Option {
	return func(o *Options) {
		o.Layout = layout
	}
}

// WithCwd sets the working directory for the engine process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithEnv provides additional environment variables for the engine process.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// WithHandshake enables FORM's pid exchange after launch. Engines started
// with "-pipe" expect it.
func WithHandshake(enabled bool) Option {
	return func(o *Options) {
		o.Handshake = enabled
	}
}

// WithNativeMode runs the engine in FORM's own external mode: LayoutPipeFD
// with the handshake. A stock FORM binary needs this.
func WithNativeMode() Option {
	return func(o *Options) {
		o.Layout = LayoutPipeFD
		o.Handshake = true
	}
}

// ===== Diagnostics =====

// WithLogScrollback keeps the last n diagnostic lines for FormError.Log.
// A negative n keeps everything.
func WithLogScrollback(n int) Option {
	return func(o *Options) {
		o.LogScrollback = n
	}
}

// WithDiagnosticRules adds classification rules checked before the
// built-in table.
func WithDiagnosticRules(rules ...Rule) Option {
	return func(o *Options) {
		o.DiagnosticRules = append(o.DiagnosticRules, rules...)
	}
}

// WithReplaceDefaultRules drops the built-in classification table.
func WithReplaceDefaultRules(replace bool) Option {
	return func(o *Options) {
		o.ReplaceDefaultRules = replace
	}
}

// WithOnDiagnostic sets a callback receiving every diagnostic line.
// It runs on the monitor goroutine and must not block.
func WithOnDiagnostic(fn func(Diagnostic)) Option {
	return func(o *Options) {
		o.OnDiagnostic = fn
	}
}

// ===== Timeouts =====

// WithReadTimeout bounds every wait for engine output. The caller's context
// deadline still applies; the sooner one wins.
func WithReadTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.ReadTimeout = timeout
	}
}

// WithStartTimeout bounds launching and the handshake.
func WithStartTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.StartTimeout = timeout
	}
}

// WithShutdownTimeout bounds each wait for the engine to exit during Close.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.ShutdownTimeout = timeout
	}
}

// ===== Advanced =====

// WithTransport injects a custom transport implementation.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}
