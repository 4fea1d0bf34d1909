// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitCoder is implemented by errors that carry a process exit code,
// such as command.ExitError.
type ExitCoder interface {
	ExitCode() int
}

// Fatal writes "error: err" to stderr and exits with the code carried
// by err, or 1. This is the standard entrypoint error handler. Use it
// in main() for errors from run() where the structured logger may not
// be initialized.
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

// report writes err to w and returns the exit code for it. An
// ExitCoder with an empty message has already reported itself.
func report(w io.Writer, err error) int {
	code := 1
	var coder ExitCoder
	if errors.As(err, &coder) && coder.ExitCode() > 0 {
		code = coder.ExitCode()
	}
	if message := err.Error(); message != "" {
		fmt.Fprintf(w, "error: %s\n", message)
	}
	return code
}
