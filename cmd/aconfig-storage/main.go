// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/aconfigd/lib/codec"
	"github.com/bureau-foundation/aconfigd/lib/command"
	"github.com/bureau-foundation/aconfigd/lib/flagdecl"
	"github.com/bureau-foundation/aconfigd/lib/process"
	"github.com/bureau-foundation/aconfigd/lib/storagefile"
	"github.com/bureau-foundation/aconfigd/lib/version"
)

func main() {
	if err := rootCommand(os.Stdout, os.Stderr).Execute(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func rootCommand(stdout, stderr io.Writer) *command.Command {
	var showVersion bool
	return &command.Command{
		Name:        "aconfig-storage",
		Description: "Build and inspect aconfig storage files.",
		Output:      stderr,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("aconfig-storage", pflag.ContinueOnError)
			flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
			return flagSet
		},
		Subcommands: []*command.Command{
			createCommand(stdout),
			dumpCommand(stdout),
		},
		Run: func(args []string) error {
			if showVersion {
				fmt.Fprintln(stdout, version.Binary("aconfig-storage"))
				return nil
			}
			return errors.New("subcommand required\n\nRun 'aconfig-storage --help' for usage.")
		},
	}
}

func createCommand(stdout io.Writer) *command.Command {
	var declarationsPath, outDir string
	const usage = "aconfig-storage create --declarations FILE --out DIR"
	return &command.Command{
		Name:    "create",
		Summary: "Build a container's storage files from flag declarations",
		Usage:   usage,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("create", pflag.ContinueOnError)
			flagSet.StringVarP(&declarationsPath, "declarations", "d", "", "JSONC flag declaration file (required)")
			flagSet.StringVarP(&outDir, "out", "o", "", "output directory (required)")
			return flagSet
		},
		Examples: []command.Example{
			{
				Description: "Build the system partition's storage files",
				Command:     "aconfig-storage create --declarations system.jsonc --out system/etc/aconfig",
			},
		},
		Run: func(args []string) error {
			if err := command.ExactArgs(args, 0, usage); err != nil {
				return err
			}
			var missing []error
			if declarationsPath == "" {
				missing = append(missing, errors.New("--declarations is required"))
			}
			if outDir == "" {
				missing = append(missing, errors.New("--out is required"))
			}
			if err := errors.Join(missing...); err != nil {
				return err
			}

			declarations, err := flagdecl.ReadFile(declarationsPath)
			if err != nil {
				return err
			}
			if issues := flagdecl.Validate(declarations); len(issues) > 0 {
				return fmt.Errorf("%s: %d issue(s):\n  %s", declarationsPath, len(issues), strings.Join(issues, "\n  "))
			}
			flags, err := declarations.StorageDeclarations()
			if err != nil {
				return err
			}
			files, err := storagefile.Build(declarations.Container, declarations.StorageVersion(), flags)
			if err != nil {
				return fmt.Errorf("building storage files: %w", err)
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", outDir, err)
			}
			if err := files.WriteDir(outDir); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote storage files for container %s (%d flags) to %s\n",
				declarations.Container, len(flags), outDir)
			return nil
		},
	}
}

const dumpDescription = `Print the header and every entry of a package map, flag map, flag value,
or flag info file. Files ending in .cbor (daemon records, local overrides,
staged OTA flags) are printed in CBOR diagnostic notation, or decoded with
--json.`

func dumpCommand(stdout io.Writer) *command.Command {
	var outputJSON bool
	const usage = "aconfig-storage dump FILE [--json]"
	return &command.Command{
		Name:        "dump",
		Summary:     "Print the header and entries of a storage file",
		Description: dumpDescription,
		Usage:       usage,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("dump", pflag.ContinueOnError)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if err := command.ExactArgs(args, 1, usage); err != nil {
				return err
			}
			if filepath.Ext(args[0]) == ".cbor" {
				return dumpCBOR(stdout, args[0], outputJSON)
			}
			mapping, err := storagefile.Map(args[0], false)
			if err != nil {
				return err
			}
			defer mapping.Close()

			dump, err := dumpFile(mapping.Bytes())
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if outputJSON {
				return command.WriteJSON(stdout, dump)
			}
			return dump.writeText(stdout)
		},
	}
}

func dumpCBOR(w io.Writer, path string, outputJSON bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if outputJSON {
		var value any
		if err := codec.Unmarshal(data, &value); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return command.WriteJSON(w, value)
	}
	notation, err := codec.Diagnose(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintln(w, notation)
	return nil
}
