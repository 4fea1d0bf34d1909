// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSocketDirIsShort(t *testing.T) {
	directory := SocketDir(t)
	if !strings.HasPrefix(directory, "/tmp/") {
		t.Errorf("SocketDir = %s, want a /tmp path", directory)
	}
	// Leave room for a socket file name under the sun_path limit.
	if len(filepath.Join(directory, "aconfigd.sock")) >= 108 {
		t.Errorf("socket path too long: %s", directory)
	}
}

func TestWaitForSocket(t *testing.T) {
	path := filepath.Join(SocketDir(t), "ready")
	done := make(chan struct{})
	go func() {
		defer close(done)
		WaitForSocket(t, path)
	}()
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	RequireClosed(t, done, 5*time.Second, "WaitForSocket did not return")
}

func TestRequireReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	if got := RequireReceive(t, ch, time.Second, "receiving"); got != 7 {
		t.Errorf("RequireReceive = %d, want 7", got)
	}
}

func TestUniqueID(t *testing.T) {
	first := UniqueID("socket")
	second := UniqueID("socket")
	if first == second {
		t.Errorf("UniqueID returned %q twice", first)
	}
	if !strings.HasPrefix(first, "socket_") {
		t.Errorf("UniqueID = %q, want socket_ prefix", first)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		message []any
		want    string
	}{
		{nil, "wait"},
		{[]any{"daemon exit"}, "daemon exit"},
		{[]any{"socket %s", "system"}, "socket system"},
		{[]any{42}, "42"},
	}
	for _, test := range tests {
		if got := describe(test.message); got != test.want {
			t.Errorf("describe(%v) = %q, want %q", test.message, got, test.want)
		}
	}
}
