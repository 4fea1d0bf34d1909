// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fileutil

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// digestKey is the BLAKE3 key for storage file digests: the ASCII
// domain name zero-padded to 32 bytes. Changing it makes every
// recorded digest stale, which re-copies every container on next boot.
var digestKey = [32]byte{
	'a', 'c', 'o', 'n', 'f', 'i', 'g', 'd', '.', 's', 't', 'o', 'r', 'a', 'g', 'e',
	'.', 'd', 'i', 'g', 'e', 's', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Digest returns the hex BLAKE3 keyed digest of the concatenated
// contents of paths, in order.
func Digest(paths ...string) (string, error) {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("fileutil: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	for _, path := range paths {
		if err := hashFile(hasher, path); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s for digest: %w", path, err)
	}
	defer file.Close()
	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("reading %s for digest: %w", path, err)
	}
	return nil
}
