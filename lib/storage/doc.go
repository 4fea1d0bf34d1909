// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage manages the flag storage files of every registered
// container on behalf of aconfigd.
//
// Each container contributes four read-only default files (see
// lib/storagefile). On registration the daemon copies them under its
// root directory:
//
//	maps/<container>.package.map      persist copy, 0444
//	maps/<container>.flag.map         persist copy, 0444
//	flags/<container>.val             persist values, 0644, server overrides land here
//	flags/<container>.info            persist attributes, 0644
//	flags/<container>_local_overrides.cbor
//	boot/<container>.val              values readers map for this boot
//	boot/<container>.info
//
// Server overrides are written into the persist value file and take
// effect when [Files.ApplyAllStagedOverrides] copies persist to boot at
// the next init. Local overrides are kept in a side file and re-applied
// on top of the boot copy every time, so they survive server pushes.
// Local-immediate overrides additionally write the boot copy in place.
//
// [Manager] owns the [Files] of every container, resolves packages to
// containers, carries overrides across container updates (detected by
// a digest of the default files), and applies staged OTA flags.
//
// Nothing in this package is safe for concurrent use. The daemon
// serializes access with a mutex.
package storage
