// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"errors"
	"fmt"
	"os"

	"github.com/bureau-foundation/aconfigd/lib/fileutil"
	"github.com/bureau-foundation/aconfigd/lib/storagefile"
)

// PackageFlagContext is the result of resolving a package and flag
// against a container's maps.
type PackageFlagContext struct {
	Package       string
	Flag          string
	PackageExists bool
	FlagExists    bool
	ValueType     storagefile.FlagValueType

	// FlagIndex is the global index into flag.val and flag.info.
	FlagIndex uint32
}

func (c PackageFlagContext) qualifiedName() string {
	return c.Package + "." + c.Flag
}

// Files is one container's storage files. Mappings are created on first
// use and dropped whenever the underlying file is replaced.
type Files struct {
	record Record

	packageMap     *storagefile.Mapping
	flagMap        *storagefile.Mapping
	defaultFlagVal *storagefile.Mapping

	persistFlagVal  *storagefile.Mapping
	persistFlagInfo *storagefile.Mapping

	bootFlagVal  *storagefile.Mapping
	bootFlagInfo *storagefile.Mapping
}

// NewFilesFromContainer registers a container from its default files:
// persist copies and fresh boot copies are created under rootDir.
func NewFilesFromContainer(rootDir, container, packageMap, flagMap, flagVal, flagInfo string) (*Files, error) {
	version, err := storagefile.FileVersion(flagVal)
	if err != nil {
		return nil, fmt.Errorf("reading storage version of container %s: %w", container, err)
	}
	digest, err := fileutil.Digest(packageMap, flagMap, flagVal, flagInfo)
	if err != nil {
		return nil, fmt.Errorf("digesting storage files of container %s: %w", container, err)
	}

	record := newRecord(rootDir, container)
	record.Version = version
	record.Digest = digest
	record.DefaultPackageMap = packageMap
	record.DefaultFlagMap = flagMap
	record.DefaultFlagVal = flagVal
	record.DefaultFlagInfo = flagInfo

	for _, file := range []struct {
		src, dst string
		mode     os.FileMode
	}{
		{packageMap, record.PersistPackageMap, 0o444},
		{flagMap, record.PersistFlagMap, 0o444},
		{flagVal, record.PersistFlagVal, 0o644},
		{flagInfo, record.PersistFlagInfo, 0o644},
		{flagVal, record.BootFlagVal, 0o644},
		{flagInfo, record.BootFlagInfo, 0o644},
	} {
		if err := fileutil.CopyFile(file.src, file.dst, file.mode); err != nil {
			return nil, fmt.Errorf("container %s: %w", container, err)
		}
	}

	return &Files{record: record}, nil
}

// NewFilesFromRecord rebuilds a container's Files from its persisted
// record. No files are copied.
func NewFilesFromRecord(rootDir string, persisted PersistRecord) *Files {
	record := newRecord(rootDir, persisted.Container)
	record.Version = persisted.Version
	record.Digest = persisted.Digest
	record.DefaultPackageMap = persisted.PackageMap
	record.DefaultFlagMap = persisted.FlagMap
	record.DefaultFlagVal = persisted.FlagVal
	record.DefaultFlagInfo = persisted.FlagInfo
	return &Files{record: record}
}

// Record returns the container's file locations.
func (f *Files) Record() Record { return f.record }

// Container returns the container name.
func (f *Files) Container() string { return f.record.Container }

// HasBootCopy reports whether both boot files exist.
func (f *Files) HasBootCopy() bool {
	return fileutil.Exists(f.record.BootFlagVal) && fileutil.Exists(f.record.BootFlagInfo)
}

func mapFile(slot **storagefile.Mapping, path string, writable bool) ([]byte, error) {
	if *slot == nil {
		mapping, err := storagefile.Map(path, writable)
		if err != nil {
			return nil, err
		}
		*slot = mapping
	}
	return (*slot).Bytes(), nil
}

func (f *Files) packageMapBytes() ([]byte, error) {
	return mapFile(&f.packageMap, f.record.PersistPackageMap, false)
}

func (f *Files) flagMapBytes() ([]byte, error) {
	return mapFile(&f.flagMap, f.record.PersistFlagMap, false)
}

func (f *Files) defaultFlagValBytes() ([]byte, error) {
	return mapFile(&f.defaultFlagVal, f.record.DefaultFlagVal, false)
}

func (f *Files) persistFlagValBytes() ([]byte, error) {
	return mapFile(&f.persistFlagVal, f.record.PersistFlagVal, true)
}

func (f *Files) persistFlagInfoBytes() ([]byte, error) {
	return mapFile(&f.persistFlagInfo, f.record.PersistFlagInfo, true)
}

func (f *Files) bootFlagValBytes() ([]byte, error) {
	return mapFile(&f.bootFlagVal, f.record.BootFlagVal, true)
}

func (f *Files) bootFlagInfoBytes() ([]byte, error) {
	return mapFile(&f.bootFlagInfo, f.record.BootFlagInfo, true)
}

func closeMappings(slots ...**storagefile.Mapping) error {
	var errs []error
	for _, slot := range slots {
		if *slot != nil {
			errs = append(errs, (*slot).Close())
			*slot = nil
		}
	}
	return errors.Join(errs...)
}

func (f *Files) closeBootMappings() error {
	return closeMappings(&f.bootFlagVal, &f.bootFlagInfo)
}

// Close unmaps every file.
func (f *Files) Close() error {
	return closeMappings(
		&f.packageMap, &f.flagMap, &f.defaultFlagVal,
		&f.persistFlagVal, &f.persistFlagInfo,
		&f.bootFlagVal, &f.bootFlagInfo,
	)
}

// PackageFlagContext resolves package and flag. An empty package
// resolves nothing; an empty flag resolves only the package.
func (f *Files) PackageFlagContext(packageName, flagName string) (PackageFlagContext, error) {
	resolved := PackageFlagContext{Package: packageName, Flag: flagName}
	if packageName == "" {
		return resolved, nil
	}

	packageMap, err := f.packageMapBytes()
	if err != nil {
		return resolved, err
	}
	packageInfo, found, err := storagefile.PackageContext(packageMap, packageName)
	if err != nil {
		return resolved, fmt.Errorf("package %s in container %s: %w", packageName, f.record.Container, err)
	}
	if !found {
		return resolved, nil
	}
	resolved.PackageExists = true
	if flagName == "" {
		return resolved, nil
	}

	flagMap, err := f.flagMapBytes()
	if err != nil {
		return resolved, err
	}
	flag, found, err := storagefile.FlagContext(flagMap, packageInfo.PackageID, flagName)
	if err != nil {
		return resolved, fmt.Errorf("flag %s.%s in container %s: %w", packageName, flagName, f.record.Container, err)
	}
	if !found {
		return resolved, nil
	}
	valueType, err := flag.Type.ValueType()
	if err != nil {
		return resolved, &Error{Kind: ErrInvalidFlagValueType, Subject: resolved.qualifiedName(), Err: err}
	}
	resolved.FlagExists = true
	resolved.ValueType = valueType
	resolved.FlagIndex = packageInfo.BooleanStartIndex + uint32(flag.Index)
	return resolved, nil
}

// HasPackage reports whether the container declares packageName.
func (f *Files) HasPackage(packageName string) (bool, error) {
	resolved, err := f.PackageFlagContext(packageName, "")
	if err != nil {
		return false, err
	}
	return resolved.PackageExists, nil
}

// RemovePersistFiles deletes the persist copies and the local overrides
// file. Boot copies are left for readers of the current boot.
func (f *Files) RemovePersistFiles() error {
	if err := f.Close(); err != nil {
		return err
	}
	for _, path := range []string{
		f.record.PersistPackageMap,
		f.record.PersistFlagMap,
		f.record.PersistFlagVal,
		f.record.PersistFlagInfo,
		f.record.LocalOverrides,
	} {
		if err := fileutil.RemoveIfExists(path); err != nil {
			return err
		}
	}
	return nil
}
