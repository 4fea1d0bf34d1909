// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix_N" where N is a
// monotonically increasing integer.
//
//	name := testutil.UniqueID("aconfigd") // "aconfigd_1", "aconfigd_2", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, uniqueCounter.Add(1))
}
