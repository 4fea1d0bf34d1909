// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package command is the command-tree framework shared by the aconfigd,
// aflags, and aconfig-storage binaries.
//
// A binary builds a tree of [Command] values and calls
// [Command.Execute] with os.Args[1:]. Each command owns an optional
// pflag set, created lazily through its Flags function so that the
// flag variables can live in a closure next to Run. A command that has
// both Flags and Subcommands treats its flags as global: they are
// parsed up to the first positional argument, which then selects the
// subcommand.
//
// Unknown commands and flags produce an error with the closest
// candidate (by edit distance) and a pointer to --help:
//
//	unknown command "lsit" (did you mean "list"?)
//
//	Run 'aflags --help' for usage.
//
// Commands that have already written their own output and only need a
// non-zero exit status return [ExitError]; process.Fatal honours its
// code. [NewCommandLogger] gives short-lived commands a slog logger
// whose format follows whether stderr is a terminal, and [WriteJSON]
// is the common --json writer. Clients of a daemon socket pass
// connection errors through [DiagnoseSocketError] to turn a permission
// failure into a hint.
package command
