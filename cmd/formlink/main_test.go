package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	formlink "github.com/wagiedev/formlink-go"
	"github.com/wagiedev/formlink-go/internal/enginetest"
)

func TestMain(m *testing.M) {
	if enginetest.IsHelper() {
		enginetest.Main()
	}

	color.NoColor = true

	os.Exit(m.Run())
}

// helperConfig writes a config file that runs the test binary as the engine.
func helperConfig(t *testing.T) string {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)

	if strings.ContainsAny(exe, " \t") {
		t.Skip("test binary path contains whitespace")
	}

	path := filepath.Join(t.TempDir(), "formlink.toml")
	content := fmt.Sprintf("executable = %q\ninit_file = \"formlink-init.frm\"\n\n[env]\n%s = \"1\"\n",
		exe, enginetest.HelperEnvVar)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestRun(t *testing.T) {
	var out bytes.Buffer

	err := run(flags{
		configPath: helperConfig(t),
		expr:       "Local F = 1+2;\n#$x = 5;\n.sort",
	}, []string{"F", "$x"}, strings.NewReader(""), &out)

	require.NoError(t, err)
	require.Equal(t, "F = 3\n$x = 5\n", out.String())
}

func TestRun_ProgramFromStdin(t *testing.T) {
	var out bytes.Buffer

	err := run(flags{configPath: helperConfig(t)}, []string{"G"},
		strings.NewReader("Local G = a+b;\n.sort\n"), &out)

	require.NoError(t, err)
	require.Equal(t, "G = a+b\n", out.String())
}

func TestRun_EngineError(t *testing.T) {
	var out bytes.Buffer

	err := run(flags{configPath: helperConfig(t), expr: "Local F = 1@;"}, []string{"F"}, nil, &out)
	require.Error(t, err)
	require.Equal(t, 1, exitCode(err))
	require.Contains(t, describe(err), "Illegal character")
	require.Empty(t, out.String())
}

func TestReadProgram(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.frm")
	require.NoError(t, os.WriteFile(path, []byte("Local F = 1;"), 0o600))

	got, err := readProgram(flags{file: path}, nil)
	require.NoError(t, err)
	require.Equal(t, "Local F = 1;", got)

	got, err = readProgram(flags{expr: "Local G = 2;"}, nil)
	require.NoError(t, err)
	require.Equal(t, "Local G = 2;", got)

	_, err = readProgram(flags{expr: "x", file: path}, nil)
	require.Error(t, err)

	_, err = readProgram(flags{file: filepath.Join(t.TempDir(), "missing.frm")}, nil)
	require.Error(t, err)
}

func TestBuildOptions(t *testing.T) {
	opts, err := buildOptions(flags{executable: "tform", layout: "pipe-fd"})
	require.NoError(t, err)

	var o formlink.Options
	for _, opt := range opts {
		opt(&o)
	}

	require.Equal(t, "tform", o.Executable)
	require.Equal(t, formlink.LayoutPipeFD, o.Layout)
	require.True(t, o.Handshake)

	_, err = buildOptions(flags{layout: "tcp"})
	require.Error(t, err)
}

func TestBuildOptions_DefaultsToNativeMode(t *testing.T) {
	opts, err := buildOptions(flags{})
	require.NoError(t, err)

	var o formlink.Options
	for _, opt := range opts {
		opt(&o)
	}

	require.Equal(t, formlink.LayoutPipeFD, o.Layout)
	require.True(t, o.Handshake)

	opts, err = buildOptions(flags{layout: "stdio"})
	require.NoError(t, err)

	o = formlink.Options{}
	for _, opt := range opts {
		opt(&o)
	}

	require.Equal(t, formlink.LayoutStdio, o.Layout)
	require.False(t, o.Handshake)
}

func TestBuildOptions_ConfigLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formlink.toml")
	require.NoError(t, os.WriteFile(path, []byte("layout = \"stdio\"\nhandshake = false\n"), 0o600))

	opts, err := buildOptions(flags{configPath: path})
	require.NoError(t, err)

	var o formlink.Options
	for _, opt := range opts {
		opt(&o)
	}

	require.Equal(t, formlink.LayoutStdio, o.Layout)
	require.False(t, o.Handshake)
}

func TestExitCode(t *testing.T) {
	require.Equal(t, 124, exitCode(fmt.Errorf("eval: %w", context.DeadlineExceeded)))
	require.Equal(t, 127, exitCode(&formlink.LaunchError{Executable: "form"}))
	require.Equal(t, 1, exitCode(&formlink.FormError{Message: "x"}))
	require.Equal(t, 2, exitCode(fmt.Errorf("other")))

	closed := &formlink.ClosedError{Cause: &formlink.TimeoutError{Op: "read", Err: context.DeadlineExceeded}}
	require.Equal(t, 2, exitCode(fmt.Errorf("eval: %w", closed)))
}

func TestDescribe(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &formlink.FormError{
		Message: "Line 1 --> boom",
		Log:     []string{"banner", "Line 1 --> boom"},
	})

	require.Equal(t, "Line 1 --> boom\nbanner\nLine 1 --> boom", describe(err))
	require.Equal(t, "plain", describe(fmt.Errorf("plain")))
}
