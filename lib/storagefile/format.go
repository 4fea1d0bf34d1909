// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storagefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Version is the storage file version written by Build.
const Version uint32 = 1

// MaxSupportedVersion is the newest version this package can read.
const MaxSupportedVersion uint32 = 1

var (
	// ErrInvalidFile is returned when a file is truncated, has offsets
	// pointing outside its bounds, or declares a size that does not
	// match its length.
	ErrInvalidFile = errors.New("invalid storage file")

	// ErrUnsupportedVersion is returned for files newer than
	// MaxSupportedVersion.
	ErrUnsupportedVersion = errors.New("unsupported storage file version")

	// ErrWrongFileType is returned when a package map operation is
	// given a flag map (or any other mismatch).
	ErrWrongFileType = errors.New("wrong storage file type")

	// ErrIndexOutOfRange is returned for a flag index past the end of a
	// value or info file.
	ErrIndexOutOfRange = errors.New("flag index out of range")

	// ErrInvalidFlagType is returned for a stored flag type outside the
	// known set.
	ErrInvalidFlagType = errors.New("invalid stored flag type")
)

// FileType identifies which of the four storage files a header belongs to.
type FileType uint8

const (
	PackageMapFile FileType = 0
	FlagMapFile    FileType = 1
	FlagValFile    FileType = 2
	FlagInfoFile   FileType = 3
)

// entrySize is the size of one body entry: a u32 node offset for the
// two maps, one byte for flag.val and flag.info.
func (t FileType) entrySize() (uint64, bool) {
	switch t {
	case PackageMapFile, FlagMapFile:
		return 4, true
	case FlagValFile, FlagInfoFile:
		return 1, true
	default:
		return 0, false
	}
}

func (t FileType) String() string {
	switch t {
	case PackageMapFile:
		return "package_map"
	case FlagMapFile:
		return "flag_map"
	case FlagValFile:
		return "flag_val"
	case FlagInfoFile:
		return "flag_info"
	default:
		return fmt.Sprintf("file_type(%d)", uint8(t))
	}
}

// StoredFlagType is the permission class recorded in the flag map.
type StoredFlagType uint16

const (
	ReadWriteBoolean     StoredFlagType = 0
	ReadOnlyBoolean      StoredFlagType = 1
	FixedReadOnlyBoolean StoredFlagType = 2
)

func (t StoredFlagType) String() string {
	switch t {
	case ReadWriteBoolean:
		return "read_write_boolean"
	case ReadOnlyBoolean:
		return "read_only_boolean"
	case FixedReadOnlyBoolean:
		return "fixed_read_only_boolean"
	default:
		return fmt.Sprintf("stored_flag_type(%d)", uint16(t))
	}
}

// FlagValueType is the value type derived from a StoredFlagType.
type FlagValueType uint8

const (
	Boolean FlagValueType = 0
)

func (t FlagValueType) String() string {
	if t == Boolean {
		return "boolean"
	}
	return fmt.Sprintf("flag_value_type(%d)", uint8(t))
}

// ValueType maps a stored flag type to its value type. Every known
// stored type is boolean.
func (t StoredFlagType) ValueType() (FlagValueType, error) {
	switch t {
	case ReadWriteBoolean, ReadOnlyBoolean, FixedReadOnlyBoolean:
		return Boolean, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidFlagType, uint16(t))
	}
}

// Attribute is a bit in a flag.info entry.
type Attribute uint8

const (
	IsReadWrite       Attribute = 1 << 0
	HasServerOverride Attribute = 1 << 1
	HasLocalOverride  Attribute = 1 << 2
)

// Header is the common prefix of every storage file.
type Header struct {
	Version    uint32
	Container  string
	FileType   FileType
	FileSize   uint32
	NumEntries uint32
	BodyOffset uint32
}

// ParseHeader decodes and validates the header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	r := reader{data: data}
	var header Header
	header.Version = r.u32()
	header.Container = r.str()
	header.FileType = FileType(r.u8())
	header.FileSize = r.u32()
	header.NumEntries = r.u32()
	header.BodyOffset = r.u32()
	if r.err != nil {
		return Header{}, r.err
	}
	if header.Version > MaxSupportedVersion {
		return Header{}, fmt.Errorf("%w: %d (max %d)", ErrUnsupportedVersion, header.Version, MaxSupportedVersion)
	}
	if int(header.FileSize) != len(data) {
		return Header{}, fmt.Errorf("%w: header declares %d bytes, have %d", ErrInvalidFile, header.FileSize, len(data))
	}
	if int(header.BodyOffset) < r.pos || int(header.BodyOffset) > len(data) {
		return Header{}, fmt.Errorf("%w: body offset %d out of bounds", ErrInvalidFile, header.BodyOffset)
	}
	entrySize, known := header.FileType.entrySize()
	if !known {
		return Header{}, fmt.Errorf("%w: unknown file type %d", ErrInvalidFile, uint8(header.FileType))
	}
	if uint64(header.BodyOffset)+uint64(header.NumEntries)*entrySize > uint64(header.FileSize) {
		return Header{}, fmt.Errorf("%w: %d entries do not fit after body offset %d in %d bytes",
			ErrInvalidFile, header.NumEntries, header.BodyOffset, header.FileSize)
	}
	return header, nil
}

// parseHeaderOfType parses the header and checks its file type.
func parseHeaderOfType(data []byte, want FileType) (Header, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return Header{}, err
	}
	if header.FileType != want {
		return Header{}, fmt.Errorf("%w: expected %s, got %s", ErrWrongFileType, want, header.FileType)
	}
	return header, nil
}

// FileVersion reads only the header of the file at path and returns its
// version. Used when registering a container, before anything is mapped.
func FileVersion(path string) (uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	header, err := ParseHeader(data)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return header.Version, nil
}

// reader is a bounds-checked little-endian cursor. The first failure
// sticks in err and every later read returns zero values.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("%w: truncated at offset %d", ErrInvalidFile, r.pos)
		return false
	}
	return true
}

func (r *reader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	value := r.data[r.pos]
	r.pos++
	return value
}

func (r *reader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	value := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return value
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	value := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return value
}

func (r *reader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	value := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return value
}

func (r *reader) str() string {
	length := int(r.u32())
	if !r.need(length) {
		return ""
	}
	value := string(r.data[r.pos : r.pos+length])
	r.pos += length
	return value
}

// seek moves the cursor to an absolute offset.
func (r *reader) seek(offset int) {
	if r.err != nil {
		return
	}
	if offset < 0 || offset > len(r.data) {
		r.err = fmt.Errorf("%w: offset %d out of bounds", ErrInvalidFile, offset)
		return
	}
	r.pos = offset
}

// writer appends little-endian values to a buffer.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// putU32 overwrites a previously reserved u32 at offset.
func (w *writer) putU32(offset int, v uint32) {
	binary.LittleEndian.PutUint32(w.buf[offset:], v)
}

// header writes a header with placeholder size and body offset. It
// returns the offsets of those two fields for later patching.
func (w *writer) header(container string, fileType FileType, version, numEntries uint32) (sizeOffset, bodyOffset int) {
	w.u32(version)
	w.str(container)
	w.u8(uint8(fileType))
	sizeOffset = len(w.buf)
	w.u32(0)
	w.u32(numEntries)
	bodyOffset = len(w.buf)
	w.u32(0)
	return sizeOffset, bodyOffset
}
