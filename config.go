package formlink

import (
	"fmt"

	"github.com/wagiedev/formlink-go/internal/config"
)

// LoadConfigFile reads a TOML config file and returns an Option applying it.
// Only keys present in the file are applied, so options given after it
// override the file and options before it fill the gaps.
//
//	executable = "tform -w4"
//	layout = "pipe-fd"
//	handshake = true
//	read_timeout = "30s"
//
//	[[diagnostic]]
//	contains = "Warning"
//	class = "warning"
func LoadConfigFile(path string) (Option, error) {
	f, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}

	// Validate once so the returned Option cannot fail.
	if err := f.Apply(&Options{}); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return func(o *Options) {
		_ = f.Apply(o)
	}, nil
}
