// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build version of the aconfigd binaries.
//
// Release builds inject [Version], [GitCommit], and [BuildTime] with
// -ldflags -X:
//
//	go build -ldflags "-X github.com/bureau-foundation/aconfigd/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Development builds fall back to the vcs.revision, vcs.time, and
// vcs.modified settings that the Go toolchain stamps into binaries built
// from a checkout. [Info] formats the result for --version output and
// for the daemon's status response; [Binary] prefixes it with a name.
package version
