// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storagefile

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"

	"github.com/bureau-foundation/aconfigd/lib/fileutil"
)

// Default file names inside a container's etc/aconfig directory.
const (
	PackageMapName = "package.map"
	FlagMapName    = "flag.map"
	FlagValName    = "flag.val"
	FlagInfoName   = "flag.info"
)

// Declaration is one flag as declared by its owning package.
type Declaration struct {
	Package string
	Name    string
	Type    StoredFlagType
	Value   bool
}

// Files holds the encoded contents of a container's four storage files.
type Files struct {
	PackageMap []byte
	FlagMap    []byte
	FlagVal    []byte
	FlagInfo   []byte
}

// Build encodes the storage files for a container from its flag
// declarations. Declarations may arrive in any order; the output is
// the same for any permutation of the same set.
func Build(container string, version uint32, declarations []Declaration) (*Files, error) {
	if container == "" {
		return nil, errors.New("container name is empty")
	}
	if version == 0 || version > MaxSupportedVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	byPackage := make(map[string][]Declaration)
	for _, declaration := range declarations {
		if declaration.Package == "" || declaration.Name == "" {
			return nil, fmt.Errorf("declaration %q.%q: package and flag name are required", declaration.Package, declaration.Name)
		}
		if _, err := declaration.Type.ValueType(); err != nil {
			return nil, fmt.Errorf("declaration %s.%s: %w", declaration.Package, declaration.Name, err)
		}
		byPackage[declaration.Package] = append(byPackage[declaration.Package], declaration)
	}

	packageNames := make([]string, 0, len(byPackage))
	for name := range byPackage {
		packageNames = append(packageNames, name)
	}
	slices.Sort(packageNames)

	var (
		packages []PackageInfo
		flags    []FlagEntry
		values   []byte
		infos    []byte
	)
	for packageID, packageName := range packageNames {
		packageFlags := byPackage[packageName]
		slices.SortFunc(packageFlags, func(a, b Declaration) int { return cmp.Compare(a.Name, b.Name) })
		if len(packageFlags) > math.MaxUint16 {
			return nil, fmt.Errorf("package %s declares %d flags, limit is %d", packageName, len(packageFlags), math.MaxUint16)
		}
		flagNames := make([]string, len(packageFlags))
		for i, declaration := range packageFlags {
			flagNames[i] = declaration.Name
		}
		packages = append(packages, PackageInfo{
			Name:              packageName,
			PackageID:         uint32(packageID),
			BooleanStartIndex: uint32(len(values)),
			Fingerprint:       PackageFingerprint(flagNames),
		})
		for flagIndex, declaration := range packageFlags {
			if flagIndex > 0 && packageFlags[flagIndex-1].Name == declaration.Name {
				return nil, fmt.Errorf("flag %s.%s declared twice", packageName, declaration.Name)
			}
			flags = append(flags, FlagEntry{
				PackageID: uint32(packageID),
				Name:      declaration.Name,
				Type:      declaration.Type,
				Index:     uint16(flagIndex),
			})
			var value, info byte
			if declaration.Value {
				value = 1
			}
			if declaration.Type == ReadWriteBoolean {
				info = byte(IsReadWrite)
			}
			values = append(values, value)
			infos = append(infos, info)
		}
	}

	return &Files{
		PackageMap: encodePackageMap(container, version, packages),
		FlagMap:    encodeFlagMap(container, version, flags),
		FlagVal:    encodeBytes(container, version, FlagValFile, values),
		FlagInfo:   encodeBytes(container, version, FlagInfoFile, infos),
	}, nil
}

// WriteDir writes the four files into dir under their default names.
func (f *Files) WriteDir(dir string) error {
	for _, file := range []struct {
		name string
		data []byte
	}{
		{PackageMapName, f.PackageMap},
		{FlagMapName, f.FlagMap},
		{FlagValName, f.FlagVal},
		{FlagInfoName, f.FlagInfo},
	} {
		if err := fileutil.WriteAtomic(filepath.Join(dir, file.name), file.data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func encodePackageMap(container string, version uint32, packages []PackageInfo) []byte {
	var w writer
	sizeAt, bodyAt := w.header(container, PackageMapFile, version, uint32(len(packages)))
	w.putU32(bodyAt, uint32(len(w.buf)))
	table := len(w.buf)
	for range packages {
		w.u32(0)
	}
	for i, node := range packages {
		w.putU32(table+i*4, uint32(len(w.buf)))
		w.str(node.Name)
		w.u32(node.PackageID)
		w.u32(node.BooleanStartIndex)
		w.u64(node.Fingerprint)
	}
	w.putU32(sizeAt, uint32(len(w.buf)))
	return w.buf
}

func encodeFlagMap(container string, version uint32, flags []FlagEntry) []byte {
	var w writer
	sizeAt, bodyAt := w.header(container, FlagMapFile, version, uint32(len(flags)))
	w.putU32(bodyAt, uint32(len(w.buf)))
	table := len(w.buf)
	for range flags {
		w.u32(0)
	}
	for i, node := range flags {
		w.putU32(table+i*4, uint32(len(w.buf)))
		w.u32(node.PackageID)
		w.str(node.Name)
		w.u16(uint16(node.Type))
		w.u16(node.Index)
	}
	w.putU32(sizeAt, uint32(len(w.buf)))
	return w.buf
}

func encodeBytes(container string, version uint32, fileType FileType, entries []byte) []byte {
	var w writer
	sizeAt, bodyAt := w.header(container, fileType, version, uint32(len(entries)))
	w.putU32(bodyAt, uint32(len(w.buf)))
	w.buf = append(w.buf, entries...)
	w.putU32(sizeAt, uint32(len(w.buf)))
	return w.buf
}
