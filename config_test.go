package formlink_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	formlink "github.com/wagiedev/formlink-go"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "formlink.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
executable = "tform -w2"
layout = "pipe-fd"
handshake = true
read_timeout = "5s"
log_scrollback = 50

[[diagnostic]]
contains = "Overflow"
class = "fatal"
`)

	opt, err := formlink.LoadConfigFile(path)
	require.NoError(t, err)

	var opts formlink.Options

	formlink.WithShutdownTimeout(time.Second)(&opts)
	opt(&opts)

	require.Equal(t, "tform -w2", opts.Executable)
	require.Equal(t, formlink.LayoutPipeFD, opts.Layout)
	require.True(t, opts.Handshake)
	require.Equal(t, 5*time.Second, opts.ReadTimeout)
	require.Equal(t, time.Second, opts.ShutdownTimeout)
	require.Equal(t, 50, opts.LogScrollback)
	require.Len(t, opts.DiagnosticRules, 1)
	require.Equal(t, formlink.ClassFatal, opts.DiagnosticRules[0].Class)
}

func TestLoadConfigFile_LaterOptionsWin(t *testing.T) {
	path := writeConfig(t, `executable = "tform"`)

	opt, err := formlink.LoadConfigFile(path)
	require.NoError(t, err)

	var opts formlink.Options

	opt(&opts)
	formlink.WithExecutable("form")(&opts)

	require.Equal(t, "form", opts.Executable)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "unknown key", content: `exe = "form"`, want: "unknown keys"},
		{name: "bad layout", content: `layout = "socket"`, want: "unknown layout"},
		{name: "bad duration", content: `read_timeout = "soon"`, want: "read_timeout"},
		{name: "bad rule", content: "[[diagnostic]]\nclass = \"fatal\"", want: "diagnostic[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := formlink.LoadConfigFile(writeConfig(t, tt.content))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := formlink.LoadConfigFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
