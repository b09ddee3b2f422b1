package config

import (
	"log/slog"
	"time"

	"github.com/wagiedev/formlink-go/internal/monitor"
)

const (
	// DefaultExecutable is the engine command used when nothing else is configured.
	DefaultExecutable = "form"

	// ExecutableEnvVar names the environment variable overriding DefaultExecutable.
	ExecutableEnvVar = "FORM"

	// DefaultStartTimeout bounds launching the engine and the handshake.
	DefaultStartTimeout = 10 * time.Second

	// DefaultShutdownTimeout bounds each wait for the engine to exit in Close.
	DefaultShutdownTimeout = 2 * time.Second
)

// Layout selects how the engine's channels map to its file descriptors.
type Layout int

const (
	// LayoutStdio sends statements on stdin, reads results from stdout and
	// diagnostics from stderr.
	LayoutStdio Layout = iota

	// LayoutPipeFD passes the statement and result pipes as descriptors 3 and
	// 4 and tells the engine with "-pipe 3,4". Both stdout and stderr then
	// feed the diagnostic channel. This is FORM's native external mode.
	LayoutPipeFD
)

// String returns the layout name used in config files.
func (l Layout) String() string {
	if l == LayoutPipeFD {
		return "pipe-fd"
	}

	return "stdio"
}

// Options configures a session.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Executable is the engine command, optionally with arguments
	// ("tform -w4"). If empty, $FORM is used, then DefaultExecutable.
	Executable string

	// Args are extra engine flags placed before the layout flags.
	Args []string

	// InitFile is the engine startup script, passed as the last argument.
	InitFile string

	// Layout selects the channel layout. Defaults to LayoutStdio.
	Layout Layout

	// Env provides additional environment variables for the engine process.
	Env map[string]string

	// Cwd sets the working directory for the engine process.
	Cwd string

	// Handshake performs FORM's pid exchange and "OK" greeting after launch.
	Handshake bool

	// LogScrollback is the number of diagnostic lines attached to FormError.
	// Zero keeps none, a negative value keeps all.
	LogScrollback int

	// DiagnosticRules are checked before the built-in classification table.
	DiagnosticRules []monitor.Rule

	// ReplaceDefaultRules drops the built-in table so only DiagnosticRules apply.
	ReplaceDefaultRules bool

	// OnDiagnostic is called for every diagnostic line.
	OnDiagnostic func(monitor.Diagnostic)

	// ReadTimeout bounds every Read. Zero means only the caller's context applies.
	ReadTimeout time.Duration

	// StartTimeout bounds launching and the handshake.
	// Zero means DefaultStartTimeout.
	StartTimeout time.Duration

	// ShutdownTimeout bounds each wait for the engine to exit during Close.
	// Zero means DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Transport allows injecting a custom transport implementation.
	// If nil, a subprocess.PipeTransport is created.
	Transport Transport
}

// Classifier builds the diagnostic classifier described by the options.
func (o *Options) Classifier() *monitor.Classifier {
	rules := append([]monitor.Rule(nil), o.DiagnosticRules...)
	if !o.ReplaceDefaultRules {
		rules = append(rules, monitor.DefaultRules()...)
	}

	return monitor.NewClassifier(rules...)
}

// StartTimeoutOrDefault returns StartTimeout or its default.
func (o *Options) StartTimeoutOrDefault() time.Duration {
	if o.StartTimeout > 0 {
		return o.StartTimeout
	}

	return DefaultStartTimeout
}

// ShutdownTimeoutOrDefault returns ShutdownTimeout or its default.
func (o *Options) ShutdownTimeoutOrDefault() time.Duration {
	if o.ShutdownTimeout > 0 {
		return o.ShutdownTimeout
	}

	return DefaultShutdownTimeout
}
