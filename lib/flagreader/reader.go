// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package flagreader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bureau-foundation/aconfigd/lib/storagefile"
)

const packageMapSuffix = ".package.map"

// Package is an opened aconfig package. It holds read-only mappings of
// its container's flag map and boot flag.val until Close.
type Package struct {
	name              string
	container         string
	packageID         uint32
	booleanStartIndex uint32
	fingerprint       uint64
	flagMap           *storagefile.Mapping
	flagVal           *storagefile.Mapping
}

// Open locates packageName in the package maps under mapsDir and opens
// it against the boot values in bootDir. Package maps that cannot be
// read are skipped while searching; a package found in none of them is
// a CodePackageNotFound error.
func Open(mapsDir, bootDir, packageName string) (*Package, error) {
	entries, err := os.ReadDir(mapsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Code: CodeStorageNotFound, Message: "flag storage is not found on this device", Err: err}
		}
		return nil, &Error{Code: CodeGeneric, Message: "listing " + mapsDir, Err: err}
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), packageMapSuffix) {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)

	for _, name := range names {
		info, found, err := findPackage(filepath.Join(mapsDir, name), packageName)
		if err != nil || !found {
			continue
		}
		return openPackage(mapsDir, bootDir, strings.TrimSuffix(name, packageMapSuffix), packageName, info)
	}
	return nil, &Error{Code: CodePackageNotFound, Message: fmt.Sprintf("package %s cannot be found on the device", packageName)}
}

// OpenInContainer opens packageName from a known container. fingerprint
// is the package fingerprint the caller's flag indices were generated
// against; a package map recording a different one is a
// CodeFingerprintMismatch error.
func OpenInContainer(mapsDir, bootDir, container, packageName string, fingerprint uint64) (*Package, error) {
	path := filepath.Join(mapsDir, container+packageMapSuffix)
	info, found, err := findPackage(path, packageName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Code: CodeContainerNotFound, Message: fmt.Sprintf("container %s cannot be found on the device", container), Err: err}
		}
		return nil, &Error{Code: CodeCannotReadStorageFile, Message: "reading " + path, Err: err}
	}
	if !found {
		return nil, &Error{Code: CodePackageNotFound, Message: fmt.Sprintf("package %s in container %s cannot be found on the device", packageName, container)}
	}
	if info.Fingerprint != fingerprint {
		return nil, &Error{Code: CodeFingerprintMismatch, Message: fmt.Sprintf(
			"package %s fingerprint %#016x does not match expected %#016x", packageName, info.Fingerprint, fingerprint)}
	}
	return openPackage(mapsDir, bootDir, container, packageName, info)
}

func findPackage(path, packageName string) (storagefile.PackageInfo, bool, error) {
	mapping, err := storagefile.Map(path, false)
	if err != nil {
		return storagefile.PackageInfo{}, false, err
	}
	defer mapping.Close()
	return storagefile.PackageContext(mapping.Bytes(), packageName)
}

func openPackage(mapsDir, bootDir, container, packageName string, info storagefile.PackageInfo) (*Package, error) {
	flagMap, err := storagefile.Map(filepath.Join(mapsDir, container+".flag.map"), false)
	if err != nil {
		return nil, &Error{Code: CodeCannotReadStorageFile, Message: "mapping flag map", Err: err}
	}
	flagVal, err := storagefile.Map(filepath.Join(bootDir, container+".val"), false)
	if err != nil {
		flagMap.Close()
		return nil, &Error{Code: CodeCannotReadStorageFile, Message: "mapping boot flag values", Err: err}
	}
	return &Package{
		name:              packageName,
		container:         container,
		packageID:         info.PackageID,
		booleanStartIndex: info.BooleanStartIndex,
		fingerprint:       info.Fingerprint,
		flagMap:           flagMap,
		flagVal:           flagVal,
	}, nil
}

// Name returns the package name.
func (p *Package) Name() string { return p.name }

// Container returns the container the package was found in.
func (p *Package) Container() string { return p.container }

// Fingerprint returns the package fingerprint recorded in the package map.
func (p *Package) Fingerprint() uint64 { return p.fingerprint }

// BooleanFlagValue returns the boot value of flagName, or defaultValue
// when the package does not declare it or the value cannot be read.
func (p *Package) BooleanFlagValue(flagName string, defaultValue bool) bool {
	entry, found, err := storagefile.FlagContext(p.flagMap.Bytes(), p.packageID, flagName)
	if err != nil || !found {
		return defaultValue
	}
	value, err := storagefile.BoolValue(p.flagVal.Bytes(), p.booleanStartIndex+uint32(entry.Index))
	if err != nil {
		return defaultValue
	}
	return value
}

// BooleanFlagValueAt returns the boot value of the flag at index within
// the package, for generated code that already knows flag positions.
func (p *Package) BooleanFlagValueAt(index uint32) (bool, error) {
	value, err := storagefile.BoolValue(p.flagVal.Bytes(), p.booleanStartIndex+index)
	if err != nil {
		return false, &Error{Code: CodeCannotReadStorageFile, Message: fmt.Sprintf("reading flag %d of %s", index, p.name), Err: err}
	}
	return value, nil
}

// Close unmaps the package's storage files.
func (p *Package) Close() error {
	return errors.Join(p.flagMap.Close(), p.flagVal.Close())
}
