// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemon implements aconfigd: it keeps the per-container flag
// storage files under the storage root in step with the default files
// shipped in each container, and serves flag overrides and queries on
// the control socket.
//
// A [Daemon] owns one storage.Manager. The entry points run one daemon
// command each:
//
//   - [StartSocket] loads the storage records and serves the control
//     socket until its context is cancelled.
//   - [PlatformInit] recreates the boot files of the platform
//     partitions, applying staged OTA flags when the device booted the
//     build they target.
//   - [Init] registers or updates every apex under the apex directory.
//   - [BootstrapInit] does the same for the bootstrap apex directory.
//
// Each initializer succeeds with nothing to do when its source
// directory does not exist. Socket connections are served
// concurrently; every operation on the manager runs under the daemon's
// mutex.
package daemon
