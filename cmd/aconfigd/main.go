// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/aconfigd/lib/command"
	"github.com/bureau-foundation/aconfigd/lib/config"
	"github.com/bureau-foundation/aconfigd/lib/daemon"
	"github.com/bureau-foundation/aconfigd/lib/process"
	"github.com/bureau-foundation/aconfigd/lib/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCommand(ctx, os.Stdout, os.Stderr).Execute(os.Args[1:]); err != nil {
		stop()
		process.Fatal(err)
	}
}

// rootCommand builds the aconfigd command tree. Logs go to stderr and
// version output to stdout.
func rootCommand(ctx context.Context, stdout, stderr io.Writer) *command.Command {
	var (
		configPath  string
		showVersion bool
	)

	// setup loads and validates the configuration and builds the
	// daemon logger from it.
	setup := func(name string) (*config.Config, *slog.Logger, error) {
		var (
			cfg *config.Config
			err error
		)
		if configPath != "" {
			cfg, err = config.LoadFile(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid config: %w", err)
		}
		logger, err := newLogger(cfg, stderr)
		if err != nil {
			return nil, nil, err
		}
		return cfg, logger.With("command", name, "role", string(cfg.Role)), nil
	}

	oneShot := func(name, summary string, body func(*config.Config, *slog.Logger) error) *command.Command {
		return &command.Command{
			Name:    name,
			Summary: summary,
			Usage:   "aconfigd [--config FILE] " + name,
			Run: func(args []string) error {
				if len(args) > 0 {
					return fmt.Errorf("%s takes no arguments, got %q", name, args)
				}
				cfg, logger, err := setup(name)
				if err != nil {
					return err
				}
				logger.Info("starting", "version", version.Info())
				if err := body(cfg, logger); err != nil {
					logger.Error("failed", "error", err)
					return err
				}
				logger.Info("done")
				return nil
			},
		}
	}

	return &command.Command{
		Name:        "aconfigd",
		Description: "Manage aconfig flag storage files and serve flag overrides.",
		Output:      stderr,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("aconfigd", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (default $"+config.EnvVar+")")
			flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
			return flagSet
		},
		Subcommands: []*command.Command{
			oneShot("start-socket", "Serve the control socket until terminated", func(cfg *config.Config, logger *slog.Logger) error {
				return daemon.StartSocket(ctx, cfg, logger)
			}),
			oneShot("init", "Initialize mainline containers from the apex directory", daemon.Init),
			oneShot("bootstrap-init", "Initialize mainline containers from the bootstrap apex directory", daemon.BootstrapInit),
			oneShot("platform-init", "Rebuild boot files of the platform partitions", daemon.PlatformInit),
		},
		Examples: []command.Example{
			{Description: "Rebuild platform boot files with a test config", Command: "aconfigd --config /data/local/tmp/aconfigd.yaml platform-init"},
		},
		Run: func(args []string) error {
			if showVersion {
				fmt.Fprintln(stdout, version.Binary("aconfigd"))
				return nil
			}
			return fmt.Errorf("subcommand required\n\nRun 'aconfigd --help' for usage.")
		},
	}
}

// newLogger builds the daemon logger described by cfg.Log.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(w, options)), nil
	}
	return slog.New(slog.NewJSONHandler(w, options)), nil
}
