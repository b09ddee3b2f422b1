package engine

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// InitScript is the startup program for FORM's external mode. It answers the
// handshake with "OK", then reads blocks with #fromexternal until a block
// ends without redefining the loop variable.
//
//go:embed init.frm
var InitScript string

// WriteInitScript installs InitScript under dir and returns its path. The
// file name carries a content hash so concurrent sessions share one file and
// an outdated copy is never reused.
func WriteInitScript(dir string) (string, error) {
	sum := sha256.Sum256([]byte(InitScript))
	path := filepath.Join(dir, "formlink-init-"+hex.EncodeToString(sum[:6])+".frm")

	if data, err := os.ReadFile(path); err == nil && string(data) == InitScript {
		return path, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("install init script: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".formlink-init-*")
	if err != nil {
		return "", fmt.Errorf("install init script: %w", err)
	}

	if _, err := tmp.WriteString(InitScript); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return "", fmt.Errorf("install init script: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return "", fmt.Errorf("install init script: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())

		return "", fmt.Errorf("install init script: %w", err)
	}

	return path, nil
}

// DefaultInitDir is the directory WriteInitScript uses when none is configured.
func DefaultInitDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "formlink")
	}

	return filepath.Join(os.TempDir(), "formlink")
}
