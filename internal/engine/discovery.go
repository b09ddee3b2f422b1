package engine

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wagiedev/formlink-go/internal/config"
	"github.com/wagiedev/formlink-go/internal/errors"
)

// Config holds configuration for engine discovery.
type Config struct {
	// Executable is an explicit engine command that skips the environment
	// and PATH defaults. It may include flags ("tform -w4").
	Executable string

	// Getenv reads environment variables. Defaults to os.Getenv.
	Getenv func(string) string

	// Logger is an optional logger for discovery operations.
	// If nil, a default no-op logger is used.
	Logger *slog.Logger
}

// Command is a resolved engine invocation.
type Command struct {
	// Path is the executable to run.
	Path string

	// Args are the flags that came with the configured command.
	Args []string
}

// Discoverer locates the FORM executable.
type Discoverer interface {
	// Discover resolves the engine command.
	Discover() (*Command, error)
}

type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new engine discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &discoverer{
		cfg: cfg,
		log: log.With("component", "discovery"),
	}
}

// Discover resolves the engine command.
func (d *discoverer) Discover() (*Command, error) {
	raw, source := d.configured()

	fields := strings.Fields(raw)
	if len(fields) == 0 {
		d.log.Debug("Empty engine command", "source", source)

		return nil, &errors.LaunchError{
			Executable:    raw,
			SearchedPaths: []string{source},
		}
	}

	name := fields[0]

	d.log.Debug("Resolving engine executable", "executable", name, "source", source)

	path, err := d.find(name)
	if err != nil {
		d.log.Warn("FORM executable not found", "executable", name, "source", source)

		return nil, err
	}

	d.log.Debug("Found FORM executable", "path", path)

	return &Command{Path: path, Args: fields[1:]}, nil
}

// configured returns the command text and where it came from.
func (d *discoverer) configured() (string, string) {
	if strings.TrimSpace(d.cfg.Executable) != "" {
		return d.cfg.Executable, "explicit"
	}

	getenv := d.cfg.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	if v := getenv(config.ExecutableEnvVar); strings.TrimSpace(v) != "" {
		return v, "$" + config.ExecutableEnvVar
	}

	return config.DefaultExecutable, "default"
}

// find resolves name to an executable path. Names containing a path
// separator must exist as given; bare names are searched in PATH.
func (d *discoverer) find(name string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		info, err := os.Stat(name)
		if err != nil {
			return "", &errors.LaunchError{
				Executable:    name,
				SearchedPaths: []string{name},
			}
		}

		if info.IsDir() {
			return "", &errors.LaunchError{
				Executable: name,
				Err:        errors.ErrNotExecutable,
			}
		}

		return name, nil
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", &errors.LaunchError{
			Executable:    name,
			SearchedPaths: []string{"$PATH"},
			Err:           err,
		}
	}

	return path, nil
}
