// Command form-mcp serves a FORM session as Model Context Protocol tools on
// stdin and stdout.
//
//	form-mcp [-config formlink.toml] [-exec "tform -w4"] [-layout stdio] [-v]
//
// The engine runs in FORM's native pipe mode unless -layout or the config
// file says otherwise.
// Logs go to stderr. The session lives as long as the MCP connection; after
// an engine error the tools report it and the server keeps answering with
// the session's fatal error until restarted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	formlink "github.com/wagiedev/formlink-go"
	"github.com/wagiedev/formlink-go/internal/config"
)

func main() {
	configPath := flag.String("config", "", "TOML config file")
	executable := flag.String("exec", "", "engine command (default $FORM, then form)")
	layout := flag.String("layout", "", "channel layout: pipe-fd (default) or stdio")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *configPath, *executable, *layout); err != nil {
		fmt.Fprintf(os.Stderr, "form-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, executable, layout string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := buildOptions(configPath, executable, layout)
	if err != nil {
		return err
	}

	opts = append(opts, formlink.WithLogger(logger))

	s, err := formlink.Open(ctx, opts...)
	if err != nil {
		return err
	}

	defer func() { _ = s.Close() }()

	return formlink.NewMCPServer(s, logger).Run(ctx, &mcp.StdioTransport{})
}

// buildOptions defaults to FORM's native external mode. A config file may
// change the layout and an explicit -layout overrides both.
func buildOptions(configPath, executable, layout string) ([]formlink.Option, error) {
	opts := []formlink.Option{formlink.WithNativeMode()}

	if configPath != "" {
		opt, err := formlink.LoadConfigFile(configPath)
		if err != nil {
			return nil, err
		}

		opts = append(opts, opt)
	}

	if executable != "" {
		opts = append(opts, formlink.WithExecutable(executable))
	}

	if layout != "" {
		l, err := config.ParseLayout(layout)
		if err != nil {
			return nil, err
		}

		opts = append(opts, formlink.WithLayout(l), formlink.WithHandshake(l == formlink.LayoutPipeFD))
	}

	return opts, nil
}
