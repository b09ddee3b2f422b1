package enginetest

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// HelperEnvVar marks a test binary re-executed as a simulated engine.
const HelperEnvVar = "FORMLINK_SIMULATED_ENGINE"

// Environment variables read by Main.
const (
	DelayEnvVar     = "FORMLINK_SIMULATED_DELAY"
	WrapWidthEnvVar = "FORMLINK_SIMULATED_WRAP"
	HangEnvVar      = "FORMLINK_SIMULATED_HANG"
)

// IsHelper reports whether the current process was started as a simulated engine.
func IsHelper() bool {
	return os.Getenv(HelperEnvVar) != ""
}

// HelperEnv returns the environment that makes a re-executed test binary run Main.
func HelperEnv(opts Options) map[string]string {
	env := map[string]string{HelperEnvVar: "1"}

	if opts.Delay > 0 {
		env[DelayEnvVar] = opts.Delay.String()
	}

	if opts.WrapWidth > 0 {
		env[WrapWidthEnvVar] = strconv.Itoa(opts.WrapWidth)
	}

	if opts.Hang {
		env[HangEnvVar] = "1"
	}

	return env
}

// Main runs the simulated engine on the process's own streams and exits.
// Call it from TestMain when IsHelper reports true:
//
//	func TestMain(m *testing.M) {
//	    if enginetest.IsHelper() {
//	        enginetest.Main()
//	    }
//	    os.Exit(m.Run())
//	}
//
// With "-pipe r,w" among the arguments it reads statements from descriptor r
// and writes results to descriptor w, and both stdout and stderr carry
// diagnostics, matching FORM's external mode. It also performs the handshake
// then.
func Main() {
	opts, in, out, err := helperConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	err = Serve(context.Background(), in, out, os.Stderr, opts)

	switch {
	case err == nil:
		os.Exit(0)
	case stderrors.Is(err, ErrTerminated):
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func helperConfig(args []string) (Options, io.Reader, io.Writer, error) {
	opts := Options{Pid: os.Getpid()}

	if v := os.Getenv(DelayEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return opts, nil, nil, fmt.Errorf("%s: %w", DelayEnvVar, err)
		}

		opts.Delay = d
	}

	if v := os.Getenv(WrapWidthEnvVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, nil, nil, fmt.Errorf("%s: %w", WrapWidthEnvVar, err)
		}

		opts.WrapWidth = n
	}

	opts.Hang = os.Getenv(HangEnvVar) != ""

	for i, a := range args {
		if a != "-pipe" || i+1 == len(args) {
			continue
		}

		rfd, wfd, ok := strings.Cut(args[i+1], ",")
		if !ok {
			return opts, nil, nil, fmt.Errorf("bad -pipe argument %q", args[i+1])
		}

		r, err := strconv.Atoi(rfd)
		if err != nil {
			return opts, nil, nil, fmt.Errorf("bad -pipe argument %q", args[i+1])
		}

		w, err := strconv.Atoi(wfd)
		if err != nil {
			return opts, nil, nil, fmt.Errorf("bad -pipe argument %q", args[i+1])
		}

		opts.Handshake = true

		return opts, os.NewFile(uintptr(r), "pipe-in"), os.NewFile(uintptr(w), "pipe-out"), nil
	}

	return opts, os.Stdin, os.Stdout, nil
}
