// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/bureau-foundation/aconfigd/lib/codec"
)

// ReadCBOR decodes the CBOR file at path into v. A missing file leaves
// v untouched and returns nil, so callers start from the zero value.
func ReadCBOR(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// WriteCBOR atomically writes v to path as deterministic CBOR with mode 0644.
func WriteCBOR(path string, v any) error {
	data, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return WriteAtomic(path, data, 0o644)
}
