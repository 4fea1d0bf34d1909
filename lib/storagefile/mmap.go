// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storagefile

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mapping is a memory-mapped storage file.
type Mapping struct {
	path     string
	data     []byte
	writable bool
}

// Map memory-maps the file at path. A writable mapping is MAP_SHARED so
// that stores reach the file; a read-only mapping is MAP_PRIVATE.
func Map(path string, writable bool) (*Mapping, error) {
	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR
	}
	file, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidFile, path)
	}
	if size > int64(^uint32(0)) {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrInvalidFile, path, size)
	}

	prot, mapFlags := unix.PROT_READ, unix.MAP_PRIVATE
	if writable {
		prot, mapFlags = unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED
	}
	data, err := unix.Mmap(int(file.Fd()), 0, int(size), prot, mapFlags)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	if _, err := ParseHeader(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Mapping{path: path, data: data, writable: writable}, nil
}

// Bytes returns the mapped region. It must not be used after Close.
func (m *Mapping) Bytes() []byte { return m.data }

// Path returns the path the mapping was created from.
func (m *Mapping) Path() string { return m.path }

// Sync flushes a writable mapping to the file.
func (m *Mapping) Sync() error {
	if m.data == nil {
		return errors.New("mapping is closed")
	}
	if !m.writable {
		return nil
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync %s: %w", m.path, err)
	}
	return nil
}

// Close unmaps the file. Closing twice is a no-op.
func (m *Mapping) Close() error {
	if m == nil || m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap %s: %w", m.path, err)
	}
	return nil
}
