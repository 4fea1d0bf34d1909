// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storagefile

import "fmt"

// BoolValue reads the boolean at index in a flag.val file.
func BoolValue(flagVal []byte, index uint32) (bool, error) {
	offset, err := entryOffset(flagVal, FlagValFile, index)
	if err != nil {
		return false, err
	}
	return flagVal[offset] == 1, nil
}

// SetBoolValue writes the boolean at index in a flag.val file. flagVal
// is normally a writable mapping.
func SetBoolValue(flagVal []byte, index uint32, value bool) error {
	offset, err := entryOffset(flagVal, FlagValFile, index)
	if err != nil {
		return err
	}
	if value {
		flagVal[offset] = 1
	} else {
		flagVal[offset] = 0
	}
	return nil
}

// Attributes reads the attribute byte at index in a flag.info file.
func Attributes(flagInfo []byte, index uint32) (Attribute, error) {
	offset, err := entryOffset(flagInfo, FlagInfoFile, index)
	if err != nil {
		return 0, err
	}
	return Attribute(flagInfo[offset]), nil
}

// SetAttribute sets or clears one attribute bit at index in a flag.info
// file, leaving the other bits untouched.
func SetAttribute(flagInfo []byte, index uint32, attribute Attribute, on bool) error {
	offset, err := entryOffset(flagInfo, FlagInfoFile, index)
	if err != nil {
		return err
	}
	if on {
		flagInfo[offset] |= byte(attribute)
	} else {
		flagInfo[offset] &^= byte(attribute)
	}
	return nil
}

// NumFlags returns the entry count of a flag.val or flag.info file.
// Any other file type is ErrWrongFileType.
func NumFlags(data []byte) (uint32, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return 0, err
	}
	if header.FileType != FlagValFile && header.FileType != FlagInfoFile {
		return 0, fmt.Errorf("%w: %s has no flag values", ErrWrongFileType, header.FileType)
	}
	return header.NumEntries, nil
}

func entryOffset(data []byte, fileType FileType, index uint32) (int, error) {
	header, err := parseHeaderOfType(data, fileType)
	if err != nil {
		return 0, err
	}
	if index >= header.NumEntries {
		return 0, fmt.Errorf("%w: %d >= %d", ErrIndexOutOfRange, index, header.NumEntries)
	}
	offset := int(header.BodyOffset) + int(index)
	if offset >= len(data) {
		return 0, fmt.Errorf("%w: entry %d past end of file", ErrInvalidFile, index)
	}
	return offset, nil
}
