// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package storagefile reads, writes, and memory-maps the four binary
// flag storage files shipped by every container:
//
//   - package.map: package name to (package id, boolean start index,
//     fingerprint of the package's flag names)
//   - flag.map: (package id, flag name) to (stored flag type, flag index)
//   - flag.val: one byte per flag holding its boolean value
//   - flag.info: one attribute byte per flag (read-write, server
//     override, local override)
//
// Every file begins with a common [Header]. Integers are little-endian.
// Map files store a table of node offsets sorted by key so that lookups
// are binary searches directly on the mapped bytes; nothing is copied
// out of the mapping on the read path.
//
// A flag's global index into flag.val and flag.info is the package's
// boolean start index plus the flag's index within its package. [Build]
// assigns both from a list of [Declaration] values, which is how test
// fixtures and aconfig-storage create produce files.
//
// [Map] wraps mmap(2) from golang.org/x/sys/unix. Read-only mappings
// are private; writable mappings are shared so that writes reach the
// file and every other process mapping it. Callers must [Mapping.Close]
// a mapping before the underlying file is replaced or removed.
package storagefile
