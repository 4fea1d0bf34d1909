// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package flagreader is the read path used by flag consumers. It never
// talks to the daemon: it maps the daemon's persisted package and flag
// maps plus the boot flag.val file directly, so a lookup is a binary
// search over mmapped memory.
//
// [Open] finds which container holds a package by scanning every
// "<container>.package.map" in the maps directory. [OpenInContainer]
// skips the scan when the caller already knows the container, and also
// checks the package fingerprint so that [Package.BooleanFlagValueAt]
// reads flag indices from the flag set they were generated for. Both
// return a [Package] whose [Package.BooleanFlagValue] falls back to a
// caller-provided default for flags the package does not declare.
//
// Failures are reported as [*Error] values carrying a [Code], so that
// callers can distinguish "this package is not on the device" from
// "storage is unreadable".
package flagreader
