// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/aconfigd/lib/command"
	"github.com/bureau-foundation/aconfigd/lib/flagdecl"
	"github.com/bureau-foundation/aconfigd/lib/ipc"
	"github.com/bureau-foundation/aconfigd/lib/process"
	"github.com/bureau-foundation/aconfigd/lib/version"
)

// requestTimeout bounds every socket exchange of one command.
const requestTimeout = 30 * time.Second

const aboutText = `Tool for reading and writing flags.

Rows in the table from the list command follow this format:

  package.flag value staged_value provenance permission container

  value         the value read from the flag.
  staged_value  the value on next boot: "-" when unchanged,
                "(->enabled)" or "(->disabled)" when it flips.
  provenance    default (build-time default), server (server
                override), or local (local override).
  permission    read-write or read-only.
  container     the container the flag is declared in.`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	terminal := term.IsTerminal(int(os.Stdout.Fd()))
	logger := command.NewCommandLogger(slog.LevelWarn)
	if err := rootCommand(ctx, os.Stdout, os.Stderr, terminal, logger).Execute(os.Args[1:]); err != nil {
		stop()
		process.Fatal(err)
	}
}

// rootCommand builds the aflags command tree. colorCapable reports
// whether stdout can show colors.
func rootCommand(ctx context.Context, stdout, stderr io.Writer, colorCapable bool, logger *slog.Logger) *command.Command {
	var (
		socketPaths []string
		showVersion bool
	)

	source := func() (*flagSource, error) {
		if len(socketPaths) == 0 {
			return nil, errors.New("at least one --socket is required")
		}
		return newFlagSource(socketPaths, logger), nil
	}

	withTimeout := func(run func(context.Context, *flagSource) error) error {
		flags, err := source()
		if err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		return run(callCtx, flags)
	}

	setCommand := func(name, summary, value string) *command.Command {
		var immediate bool
		usage := "aflags " + name + " <package.flag> [--immediate]"
		return &command.Command{
			Name:    name,
			Summary: summary,
			Description: summary + ".\n\nPrevents server overrides until the value is unset. " +
				"By default, requires a reboot to take effect.",
			Usage: usage,
			Flags: func() *pflag.FlagSet {
				flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
				flagSet.BoolVarP(&immediate, "immediate", "i", false, "apply the change immediately")
				return flagSet
			},
			Run: func(args []string) error {
				if err := command.ExactArgs(args, 1, usage); err != nil {
					return err
				}
				return withTimeout(func(ctx context.Context, flags *flagSource) error {
					return flags.setFlag(ctx, args[0], value, immediate)
				})
			},
		}
	}

	return &command.Command{
		Name:        "aflags",
		Description: aboutText,
		Output:      stderr,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("aflags", pflag.ContinueOnError)
			flagSet.StringSliceVar(&socketPaths, "socket", []string{systemSocket, mainlineSocket}, "aconfigd control socket (repeatable)")
			flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
			return flagSet
		},
		Subcommands: []*command.Command{
			listCommand(stdout, colorCapable, withTimeout),
			setCommand("enable", "Locally enable an aconfig flag on this device", "true"),
			setCommand("disable", "Locally disable an aconfig flag on this device", "false"),
			unsetCommand(withTimeout),
			queryCommand(stdout, withTimeout),
			stageOTACommand(withTimeout),
			{
				Name:    "reset",
				Summary: "Remove every server and local override",
				Usage:   "aflags reset",
				Run: func(args []string) error {
					if err := command.ExactArgs(args, 0, "aflags reset"); err != nil {
						return err
					}
					return withTimeout(func(ctx context.Context, flags *flagSource) error {
						return flags.resetAll(ctx)
					})
				},
			},
			{
				Name:    "which-backing",
				Summary: "Display which flag storage backs aconfig flags",
				Run: func(args []string) error {
					fmt.Fprintln(stdout, "aconfig_storage")
					return nil
				},
			},
		},
		Examples: []command.Example{
			{Description: "List the flags of the system container", Command: "aflags list --container system"},
			{Description: "Enable a flag now instead of after reboot", Command: "aflags enable com.android.example.my_flag --immediate"},
		},
		Run: func(args []string) error {
			if showVersion {
				fmt.Fprintln(stdout, version.Binary("aflags"))
				return nil
			}
			return fmt.Errorf("subcommand required\n\nRun 'aflags --help' for usage.")
		},
	}
}

type timeoutRunner func(func(context.Context, *flagSource) error) error

func listCommand(stdout io.Writer, colorCapable bool, withTimeout timeoutRunner) *command.Command {
	var (
		container  string
		outputJSON bool
		noColor    bool
	)
	return &command.Command{
		Name:    "list",
		Summary: "List all aconfig flags on this device",
		Usage:   "aflags list [--container NAME] [--json] [--no-color]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flagSet.StringVarP(&container, "container", "c", "", "only list flags of this container")
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			flagSet.BoolVar(&noColor, "no-color", false, "disable colored output")
			return flagSet
		},
		Run: func(args []string) error {
			if err := command.ExactArgs(args, 0, "aflags list [--container NAME] [--json] [--no-color]"); err != nil {
				return err
			}
			return withTimeout(func(ctx context.Context, flags *flagSource) error {
				rows, err := flags.listFlags(ctx)
				if err != nil {
					return fmt.Errorf("could not list flags: %w", err)
				}
				if container != "" {
					known := false
					for _, name := range containers(rows) {
						known = known || name == container
					}
					if !known {
						return fmt.Errorf("could not list flags: container '%s' not found", container)
					}
					rows = filterContainer(rows, container)
				}
				if outputJSON {
					return command.WriteJSON(stdout, rows)
				}
				color := colorCapable && !noColor && !termenv.EnvNoColor()
				_, err = io.WriteString(stdout, formatTable(rows, newTableStyles(stdout, color)))
				return err
			})
		},
	}
}

func unsetCommand(withTimeout timeoutRunner) *command.Command {
	var immediate bool
	usage := "aflags unset <package.flag> [--immediate]"
	return &command.Command{
		Name:        "unset",
		Summary:     "Clear any local override value and re-allow server overrides",
		Description: "Clear any local override value and re-allow server overrides.\n\nBy default, requires a reboot to take effect.",
		Usage:       usage,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("unset", pflag.ContinueOnError)
			flagSet.BoolVarP(&immediate, "immediate", "i", false, "apply the change immediately")
			return flagSet
		},
		Run: func(args []string) error {
			if err := command.ExactArgs(args, 1, usage); err != nil {
				return err
			}
			return withTimeout(func(ctx context.Context, flags *flagSource) error {
				return flags.unsetFlag(ctx, args[0], immediate)
			})
		},
	}
}

func queryCommand(stdout io.Writer, withTimeout timeoutRunner) *command.Command {
	var outputJSON bool
	usage := "aflags query <package.flag> [--json]"
	return &command.Command{
		Name:    "query",
		Summary: "Show every stored value of one flag",
		Usage:   usage,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("query", pflag.ContinueOnError)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if err := command.ExactArgs(args, 1, usage); err != nil {
				return err
			}
			return withTimeout(func(ctx context.Context, flags *flagSource) error {
				snapshot, _, err := flags.queryFlag(ctx, args[0])
				if err != nil {
					return err
				}
				if outputJSON {
					return command.WriteJSON(stdout, snapshot)
				}
				writeSnapshot(stdout, snapshot)
				return nil
			})
		},
	}
}

// writeSnapshot prints a snapshot as aligned "key: value" lines.
func writeSnapshot(w io.Writer, snapshot *ipc.FlagSnapshot) {
	fields := []struct {
		key   string
		value any
	}{
		{"flag", ipc.QualifiedName(snapshot.Package, snapshot.Flag)},
		{"container", snapshot.Container},
		{"boot_value", snapshot.BootValue},
		{"default_value", snapshot.DefaultValue},
		{"server_value", snapshot.ServerValue},
		{"local_value", snapshot.LocalValue},
		{"is_readwrite", snapshot.IsReadWrite},
		{"has_server_override", snapshot.HasServerOverride},
		{"has_local_override", snapshot.HasLocalOverride},
		{"has_boot_local_override", snapshot.HasBootLocalOverride},
	}
	for _, field := range fields {
		fmt.Fprintf(w, "%-24s %v\n", field.key+":", field.value)
	}
}

func stageOTACommand(withTimeout timeoutRunner) *command.Command {
	var path string
	return &command.Command{
		Name:    "stage-ota",
		Summary: "Stage server overrides for the next OTA build",
		Description: "Stage server overrides that become active once the device boots the named build.\n\n" +
			"The file is JSONC: {\"build_id\": \"...\", \"overrides\": [{\"package\": \"...\", \"flag\": \"...\", \"value\": \"true\"}]}",
		Usage: "aflags stage-ota --file FILE",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("stage-ota", pflag.ContinueOnError)
			flagSet.StringVarP(&path, "file", "f", "", "JSONC file with the build id and overrides (required)")
			return flagSet
		},
		Run: func(args []string) error {
			if err := command.ExactArgs(args, 0, "aflags stage-ota --file FILE"); err != nil {
				return err
			}
			if path == "" {
				return errors.New("--file is required")
			}
			staging, err := flagdecl.ReadOTAFile(path)
			if err != nil {
				return err
			}
			return withTimeout(func(ctx context.Context, flags *flagSource) error {
				return flags.stageOTA(ctx, ipc.StageOTARequest{BuildID: staging.BuildID, Overrides: staging.Overrides})
			})
		},
	}
}
