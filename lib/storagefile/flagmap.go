// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storagefile

import (
	"cmp"
	"strings"
)

// FlagEntry is one flag map node.
type FlagEntry struct {
	PackageID uint32
	Name      string
	Type      StoredFlagType

	// Index is the flag's position within its package. Add the
	// package's BooleanStartIndex to get the index into flag.val.
	Index uint16
}

// FlagContext looks up a flag by package id and name in a flag map.
func FlagContext(flagMap []byte, packageID uint32, flagName string) (FlagEntry, bool, error) {
	header, err := parseHeaderOfType(flagMap, FlagMapFile)
	if err != nil {
		return FlagEntry{}, false, err
	}
	low, high := 0, int(header.NumEntries)
	for low < high {
		middle := int(uint(low+high) >> 1)
		node, err := readFlagNode(flagMap, header, middle)
		if err != nil {
			return FlagEntry{}, false, err
		}
		order := cmp.Compare(node.PackageID, packageID)
		if order == 0 {
			order = strings.Compare(node.Name, flagName)
		}
		switch order {
		case 0:
			return node, true, nil
		case -1:
			low = middle + 1
		default:
			high = middle
		}
	}
	return FlagEntry{}, false, nil
}

// Flags returns every node in a flag map, ordered by package id then name.
func Flags(flagMap []byte) ([]FlagEntry, error) {
	header, err := parseHeaderOfType(flagMap, FlagMapFile)
	if err != nil {
		return nil, err
	}
	flags := make([]FlagEntry, 0, header.NumEntries)
	for i := range int(header.NumEntries) {
		node, err := readFlagNode(flagMap, header, i)
		if err != nil {
			return nil, err
		}
		flags = append(flags, node)
	}
	return flags, nil
}

func readFlagNode(data []byte, header Header, index int) (FlagEntry, error) {
	r := reader{data: data}
	r.seek(int(header.BodyOffset) + index*4)
	r.seek(int(r.u32()))
	node := FlagEntry{
		PackageID: r.u32(),
		Name:      r.str(),
		Type:      StoredFlagType(r.u16()),
		Index:     r.u16(),
	}
	if r.err != nil {
		return FlagEntry{}, r.err
	}
	return node, nil
}
