// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"os"
	"syscall"
)

// DiagnoseSocketError returns an ExitError with an actionable hint when
// err wraps EACCES or EPERM from connecting to socketPath, and nil for
// any other error. Control sockets are created root-only by default,
// so the hint depends on whether the caller is already root.
func DiagnoseSocketError(err error, socketPath string) *ExitError {
	if !errors.Is(err, syscall.EACCES) && !errors.Is(err, syscall.EPERM) {
		return nil
	}
	if os.Geteuid() != 0 {
		return Exitf(1, "permission denied accessing %s\n\n"+
			"The flag daemon's control socket only accepts privileged callers.\n"+
			"Re-run the command as root.", socketPath)
	}
	return Exitf(1, "permission denied accessing %s\n\n"+
		"Running as root did not help. Check the socket's ownership and mode:\n"+
		"  ls -la %s\n"+
		"and the socket.mode setting of the daemon's config.", socketPath, socketPath)
}
