// Command formlink runs a FORM program and prints the values of the given
// names.
//
//	formlink [-config file] [-exec cmd] [-e statements | -f program.frm] NAME...
//
// Without -e or -f the program is read from stdin. Names follow the session
// rules: F for an expression, $x for a $-variable, `A' for a preprocessor
// variable.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	formlink "github.com/wagiedev/formlink-go"
	"github.com/wagiedev/formlink-go/internal/config"
)

type flags struct {
	configPath string
	executable string
	layout     string
	expr       string
	file       string
	timeout    time.Duration
	noColor    bool
}

func main() {
	var f flags

	flag.StringVar(&f.configPath, "config", "", "TOML config file")
	flag.StringVar(&f.executable, "exec", "", "engine command (default $FORM, then form)")
	flag.StringVar(&f.layout, "layout", "", "channel layout: pipe-fd (default) or stdio")
	flag.StringVar(&f.expr, "e", "", "program text")
	flag.StringVar(&f.file, "f", "", "program file")
	flag.DurationVar(&f.timeout, "timeout", 0, "overall time limit")
	flag.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: formlink [flags] NAME...")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "flags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	color.NoColor = f.noColor || !isatty.IsTerminal(os.Stdout.Fd())

	if err := run(f, flag.Args(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("formlink: %s", describe(err)))
		os.Exit(exitCode(err))
	}
}

func run(f flags, names []string, stdin io.Reader, stdout io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	program, err := readProgram(f, stdin)
	if err != nil {
		return err
	}

	opts, err := buildOptions(f)
	if err != nil {
		return err
	}

	values, err := formlink.Eval(ctx, program, names, opts...)
	if err != nil {
		return err
	}

	label := color.New(color.FgCyan, color.Bold).SprintFunc()

	for i, name := range names {
		fmt.Fprintf(stdout, "%s = %s\n", label(name), values[i])
	}

	return nil
}

func readProgram(f flags, stdin io.Reader) (string, error) {
	switch {
	case f.expr != "" && f.file != "":
		return "", fmt.Errorf("use only one of -e and -f")
	case f.expr != "":
		return f.expr, nil
	case f.file != "":
		data, err := os.ReadFile(f.file)
		if err != nil {
			return "", fmt.Errorf("read program: %w", err)
		}

		return string(data), nil
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read program: %w", err)
		}

		return string(data), nil
	}
}

// buildOptions starts from FORM's native external mode. A config file may
// change the layout and an explicit -layout overrides both.
func buildOptions(f flags) ([]formlink.Option, error) {
	opts := []formlink.Option{formlink.WithNativeMode()}

	if f.configPath != "" {
		opt, err := formlink.LoadConfigFile(f.configPath)
		if err != nil {
			return nil, err
		}

		opts = append(opts, opt)
	}

	if f.executable != "" {
		opts = append(opts, formlink.WithExecutable(f.executable))
	}

	if f.layout != "" {
		l, err := config.ParseLayout(f.layout)
		if err != nil {
			return nil, err
		}

		opts = append(opts, formlink.WithLayout(l), formlink.WithHandshake(l == formlink.LayoutPipeFD))
	}

	return opts, nil
}

// describe prefers the engine's own message over the wrapped chain.
func describe(err error) string {
	if formErr, ok := stderrors.AsType[*formlink.FormError](err); ok {
		if len(formErr.Log) > 0 {
			return formErr.Message + "\n" + strings.Join(formErr.Log, "\n")
		}

		return formErr.Message
	}

	return err.Error()
}

// exitCode maps err to the process status. A ClosedError unwraps to its
// cause, so it is checked before the cause's own codes.
func exitCode(err error) int {
	switch {
	case stderrors.Is(err, formlink.ErrClosed):
		return 2
	case stderrors.Is(err, context.DeadlineExceeded):
		return 124
	case isType[*formlink.LaunchError](err):
		return 127
	case isType[*formlink.FormError](err):
		return 1
	default:
		return 2
	}
}

func isType[E error](err error) bool {
	_, ok := stderrors.AsType[E](err)

	return ok
}
