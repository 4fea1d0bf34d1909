// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storagefile

import "strings"

// PackageInfo is one package map node.
type PackageInfo struct {
	Name              string
	PackageID         uint32
	BooleanStartIndex uint32

	// Fingerprint is PackageFingerprint of the package's flag names at
	// build time. Readers that address flags by index compare it with
	// the fingerprint compiled into their code.
	Fingerprint uint64
}

// PackageContext looks up a package by name in a package map. The
// boolean return is false when the package is not in the file.
func PackageContext(packageMap []byte, packageName string) (PackageInfo, bool, error) {
	header, err := parseHeaderOfType(packageMap, PackageMapFile)
	if err != nil {
		return PackageInfo{}, false, err
	}
	low, high := 0, int(header.NumEntries)
	for low < high {
		middle := int(uint(low+high) >> 1)
		node, err := readPackageNode(packageMap, header, middle)
		if err != nil {
			return PackageInfo{}, false, err
		}
		switch strings.Compare(node.Name, packageName) {
		case 0:
			return node, true, nil
		case -1:
			low = middle + 1
		default:
			high = middle
		}
	}
	return PackageInfo{}, false, nil
}

// Packages returns every node in a package map in name order.
func Packages(packageMap []byte) ([]PackageInfo, error) {
	header, err := parseHeaderOfType(packageMap, PackageMapFile)
	if err != nil {
		return nil, err
	}
	packages := make([]PackageInfo, 0, header.NumEntries)
	for i := range int(header.NumEntries) {
		node, err := readPackageNode(packageMap, header, i)
		if err != nil {
			return nil, err
		}
		packages = append(packages, node)
	}
	return packages, nil
}

func readPackageNode(data []byte, header Header, index int) (PackageInfo, error) {
	r := reader{data: data}
	r.seek(int(header.BodyOffset) + index*4)
	r.seek(int(r.u32()))
	node := PackageInfo{
		Name:              r.str(),
		PackageID:         r.u32(),
		BooleanStartIndex: r.u32(),
		Fingerprint:       r.u64(),
	}
	if r.err != nil {
		return PackageInfo{}, r.err
	}
	return node, nil
}
