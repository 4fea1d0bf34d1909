// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package flagreader

import (
	"errors"
	"fmt"
)

// Code classifies a read failure.
type Code int

const (
	CodeGeneric Code = iota
	CodeStorageNotFound
	CodePackageNotFound
	CodeContainerNotFound
	CodeCannotReadStorageFile
	CodeFingerprintMismatch
)

func (c Code) String() string {
	switch c {
	case CodeGeneric:
		return "generic"
	case CodeStorageNotFound:
		return "storage not found"
	case CodePackageNotFound:
		return "package not found"
	case CodeContainerNotFound:
		return "container not found"
	case CodeCannotReadStorageFile:
		return "cannot read storage file"
	case CodeFingerprintMismatch:
		return "fingerprint mismatch"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error is a read failure with its classification.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so errors.Is(err,
// &Error{Code: CodePackageNotFound}) works without comparing messages.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Message == "" && other.Err == nil && other.Code == e.Code
}

// ErrPackageNotFound matches any package-not-found failure with errors.Is.
var ErrPackageNotFound = &Error{Code: CodePackageNotFound}

// CodeOf returns the code carried by err, or CodeGeneric.
func CodeOf(err error) Code {
	var readErr *Error
	if errors.As(err, &readErr) {
		return readErr.Code
	}
	return CodeGeneric
}
