// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package command

import "fmt"

// ExitError signals a non-zero exit code. When Message is empty the
// command has already written its own output and process.Fatal exits
// without printing anything further.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// ExitCode returns the process exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Exitf returns an ExitError with a formatted message.
func Exitf(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Message: fmt.Sprintf(format, args...)}
}
