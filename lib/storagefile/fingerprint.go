// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storagefile

import (
	"encoding/binary"
	"slices"

	"github.com/zeebo/blake3"
)

// fingerprintKey is the BLAKE3 key for package fingerprints: the ASCII
// domain name zero-padded to 32 bytes.
var fingerprintKey = [32]byte{
	'a', 'c', 'o', 'n', 'f', 'i', 'g', '.', 'p', 'a', 'c', 'k', 'a', 'g', 'e', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0, 0,
}

// PackageFingerprint identifies a package's flag set. It is computed
// from the sorted flag names, so it changes whenever a flag is added,
// removed, or renamed, which is exactly when compiled flag indices go
// stale. The order of flagNames does not matter.
func PackageFingerprint(flagNames []string) uint64 {
	sorted := slices.Clone(flagNames)
	slices.Sort(sorted)
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("storagefile: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var length [4]byte
	for _, name := range sorted {
		binary.LittleEndian.PutUint32(length[:], uint32(len(name)))
		hasher.Write(length[:])
		hasher.Write([]byte(name))
	}
	return binary.LittleEndian.Uint64(hasher.Sum(nil))
}
