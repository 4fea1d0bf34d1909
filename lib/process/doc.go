// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the entrypoint error handler for the
// aconfigd binaries. [Fatal] is the one legitimate raw write to stderr
// outside CLI output: it runs when the structured logger may not be
// initialized. Errors implementing [ExitCoder] choose the exit code.
package process
