// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags -X at build time.
var (
	// Version is the release version of the aconfigd tools.
	Version = "0.1.0-dev"

	// GitCommit is the short commit hash. When not injected it is read
	// from the module's VCS build settings.
	GitCommit = ""

	// BuildTime is the UTC build timestamp, or the commit time when
	// not injected.
	BuildTime = ""
)

// Info returns "<version> (<commit>[-dirty], <time>)" for --version
// output and the daemon's status response.
func Info() string {
	commit, modified, when := vcsInfo()
	if commit == "" {
		commit = "unknown"
	}
	if modified {
		commit += "-dirty"
	}
	if when == "" {
		when = "unknown"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, when)
}

// Binary prefixes Info with a binary name.
func Binary(name string) string {
	return name + " " + Info()
}

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// vcsInfo merges the injected variables with the vcs.* settings the Go
// toolchain records when building inside a checkout. Injected values win.
func vcsInfo() (commit string, modified bool, when string) {
	commit, when = GitCommit, BuildTime
	info, ok := readBuildInfo()
	if !ok {
		return commit, false, when
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if commit == "" {
				commit = setting.Value
				if len(commit) > 12 {
					commit = commit[:12]
				}
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		case "vcs.time":
			if when == "" {
				when = setting.Value
			}
		}
	}
	return commit, modified, when
}
