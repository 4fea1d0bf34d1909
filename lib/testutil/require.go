// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"testing"
	"time"
)

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed first. The optional
// message is a plain string or a format string with arguments.
//
//	response := testutil.RequireReceive(t, errs, 5*time.Second, "daemon exit")
func RequireReceive[T any](t testing.TB, ch <-chan T, timeout time.Duration, message ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed before a value arrived", describe(message))
		}
		return value
	case <-timer.C:
		t.Fatalf("%s: nothing received within %v", describe(message), timeout)
	}
	panic("unreachable")
}

// RequireClosed waits for ch to close, failing the test after timeout.
func RequireClosed(t testing.TB, ch <-chan struct{}, timeout time.Duration, message ...any) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("%s: channel still open after %v", describe(message), timeout)
	}
}

func describe(message []any) string {
	switch {
	case len(message) == 0:
		return "wait"
	case len(message) == 1:
		return fmt.Sprint(message[0])
	}
	if format, ok := message[0].(string); ok {
		return fmt.Sprintf(format, message[1:]...)
	}
	return fmt.Sprint(message...)
}
