// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fileutil holds the file operations shared by the storage
// manager and the daemon: atomic writes and copies, CBOR state files,
// and the BLAKE3 digest used to notice that a container shipped new
// storage files.
//
// Every write goes to a temporary file in the destination directory,
// is fsynced, and is renamed into place, followed by an fsync of the
// directory. Readers never observe a partial file, and a process that
// still has the old file memory-mapped keeps a valid mapping of the old
// inode.
package fileutil
