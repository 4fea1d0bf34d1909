// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"errors"
	"fmt"
)

// Error kinds. Test with errors.Is against a returned error.
var (
	ErrFlagNotFound         = errors.New("flag does not exist")
	ErrFlagReadOnly         = errors.New("flag is read only")
	ErrInvalidFlagValue     = errors.New("invalid flag value")
	ErrInvalidFlagValueType = errors.New("invalid flag value type")
	ErrNoLocalOverride      = errors.New("flag has no local override")
	ErrContainerNotFound    = errors.New("cannot find container for package")
	ErrStorageFilesNotFound = errors.New("storage files not found for container")
	ErrNoBootCopy           = errors.New("container has no boot storage copy")
)

// Error is a storage failure about a specific subject: a flag
// ("package.flag"), a package, or a container.
type Error struct {
	Kind    error
	Subject string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	message := e.Kind.Error()
	if e.Subject != "" {
		message = fmt.Sprintf("%s: %s", message, e.Subject)
	}
	if e.Err != nil {
		message = fmt.Sprintf("%s: %v", message, e.Err)
	}
	return message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, subject string) *Error {
	return &Error{Kind: kind, Subject: subject}
}
