package engine

import (
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/formlink-go/internal/config"
	"github.com/wagiedev/formlink-go/internal/errors"
)

func noEnv(string) string { return "" }

// writeFakeForm creates an executable shell script named name in a temp dir.
func writeFakeForm(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)

	err := os.WriteFile(path, []byte("#!/bin/sh\necho 'FORM 4.3.1 (Apr 11 2023, v4.3.1) 64-bits'\n"), 0o755)
	require.NoError(t, err)

	return path
}

// TestDiscoverer_ExplicitPath tests discovery with an explicit path.
func TestDiscoverer_ExplicitPath(t *testing.T) {
	fake := writeFakeForm(t, "form")

	cmd, err := NewDiscoverer(&Config{
		Executable: fake,
		Getenv:     noEnv,
		Logger:     slog.Default(),
	}).Discover()

	require.NoError(t, err)
	require.Equal(t, fake, cmd.Path)
	require.Empty(t, cmd.Args)
}

// TestDiscoverer_ExplicitWithFlags tests that flags in the command are split off.
func TestDiscoverer_ExplicitWithFlags(t *testing.T) {
	fake := writeFakeForm(t, "tform")

	cmd, err := NewDiscoverer(&Config{
		Executable: fake + "  -w4 -t /tmp",
		Getenv:     noEnv,
	}).Discover()

	require.NoError(t, err)
	require.Equal(t, fake, cmd.Path)
	require.Equal(t, []string{"-w4", "-t", "/tmp"}, cmd.Args)
}

// TestDiscoverer_NotFound tests that a missing explicit path returns LaunchError.
func TestDiscoverer_NotFound(t *testing.T) {
	_, err := NewDiscoverer(&Config{
		Executable: "/nonexistent/path/to/form",
		Getenv:     noEnv,
	}).Discover()

	require.Error(t, err)

	launchErr, ok := stderrors.AsType[*errors.LaunchError](err)
	require.True(t, ok)
	require.Equal(t, "/nonexistent/path/to/form", launchErr.Executable)
	require.Equal(t, []string{"/nonexistent/path/to/form"}, launchErr.SearchedPaths)
}

// TestDiscoverer_Directory tests that a directory is not accepted as the engine.
func TestDiscoverer_Directory(t *testing.T) {
	dir := t.TempDir()

	_, err := NewDiscoverer(&Config{Executable: dir, Getenv: noEnv}).Discover()

	require.ErrorIs(t, err, errors.ErrNotExecutable)
}

// TestDiscoverer_EnvVar tests that $FORM is used when no explicit command is set.
func TestDiscoverer_EnvVar(t *testing.T) {
	fake := writeFakeForm(t, "vorm")

	cmd, err := NewDiscoverer(&Config{
		Getenv: func(key string) string {
			if key == config.ExecutableEnvVar {
				return fake + " -q"
			}

			return ""
		},
	}).Discover()

	require.NoError(t, err)
	require.Equal(t, fake, cmd.Path)
	require.Equal(t, []string{"-q"}, cmd.Args)
}

// TestDiscoverer_ExplicitBeatsEnv tests the resolution order.
func TestDiscoverer_ExplicitBeatsEnv(t *testing.T) {
	explicit := writeFakeForm(t, "form")

	cmd, err := NewDiscoverer(&Config{
		Executable: explicit,
		Getenv:     func(string) string { return "/nonexistent/env/form" },
	}).Discover()

	require.NoError(t, err)
	require.Equal(t, explicit, cmd.Path)
}

// TestDiscoverer_DefaultSearchesPath tests that the default name is looked up in PATH.
func TestDiscoverer_DefaultSearchesPath(t *testing.T) {
	fake := writeFakeForm(t, config.DefaultExecutable)
	t.Setenv("PATH", filepath.Dir(fake))

	cmd, err := NewDiscoverer(&Config{Getenv: noEnv}).Discover()

	require.NoError(t, err)
	require.Equal(t, fake, cmd.Path)
}

// TestDiscoverer_DefaultMissing tests the error when PATH has no engine.
func TestDiscoverer_DefaultMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := NewDiscoverer(&Config{Getenv: noEnv}).Discover()

	launchErr, ok := stderrors.AsType[*errors.LaunchError](err)
	require.True(t, ok)
	require.Equal(t, config.DefaultExecutable, launchErr.Executable)
	require.Contains(t, launchErr.SearchedPaths, "$PATH")
}

// TestBuildArgs_Stdio tests argument order for the stdio layout.
func TestBuildArgs_Stdio(t *testing.T) {
	options := &config.Options{Args: []string{"-q"}}

	args := BuildArgs([]string{"-w4"}, options, "")

	require.Equal(t, []string{"-w4", "-q"}, args)
}

// TestBuildArgs_PipeFD tests that the pipe flags precede the init script.
func TestBuildArgs_PipeFD(t *testing.T) {
	options := &config.Options{Layout: config.LayoutPipeFD}

	args := BuildArgs(nil, options, "/cache/init.frm")

	require.Equal(t, []string{"-M", "-pipe", "3,4", "/cache/init.frm"}, args)
}

// TestBuildEnvironment tests that user variables are appended to the environment.
func TestBuildEnvironment(t *testing.T) {
	options := &config.Options{Env: map[string]string{"FORMPATH": "/opt/form/lib"}}

	env := BuildEnvironment(options)

	require.Contains(t, env, "FORMPATH=/opt/form/lib")
	require.GreaterOrEqual(t, len(env), len(os.Environ())+1)
}

// TestParseBannerDate tests build date extraction from banner lines.
func TestParseBannerDate(t *testing.T) {
	tests := []struct {
		name    string
		banner  string
		want    int
		wantErr bool
	}{
		{name: "release", banner: "FORM 4.3.1 (Apr 11 2023, v4.3.1) 64-bits", want: 20230411},
		{name: "tform", banner: "TFORM 4.2.0 (Jul  6 2017) 64-bits 4 workers", want: 20170706},
		{name: "git build", banner: "FORM 5.0.0-beta.1 (Dec 31 2024, v4.3.1-212-gabc) 64-bits", want: 20241231},
		{name: "empty", banner: "", wantErr: true},
		{name: "no parens", banner: "FORM 4.3.1", wantErr: true},
		{name: "bad month", banner: "FORM (Foo 11 2023)", wantErr: true},
		{name: "bad day", banner: "FORM (Apr 32 2023)", wantErr: true},
		{name: "short", banner: "FORM (Apr 11)", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBannerDate(tt.banner)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

// TestWriteInitScript tests that the script is installed once and reused.
func TestWriteInitScript(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")

	path, err := WriteInitScript(dir)
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, InitScript, string(data))
	require.Contains(t, InitScript, "#fromexternal")
	require.Contains(t, InitScript, "FORMLINKLOOPVAR")

	again, err := WriteInitScript(dir)
	require.NoError(t, err)
	require.Equal(t, path, again)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
