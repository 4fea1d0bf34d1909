// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/bureau-foundation/aconfigd/lib/fileutil"
	"github.com/bureau-foundation/aconfigd/lib/storagefile"
)

// FlagValueSummary is a flag and its current persist value.
type FlagValueSummary struct {
	Package string
	Flag    string
	Value   string
	Type    storagefile.StoredFlagType
}

// parseBoolValue accepts exactly "true" and "false".
func parseBoolValue(value string) (bool, bool) {
	switch value {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

func formatBoolValue(value bool) string {
	if value {
		return "true"
	}
	return "false"
}

// checkOverridable verifies that an override of value can be staged for
// the resolved flag and returns the parsed value.
func (f *Files) checkOverridable(resolved PackageFlagContext, value string) (bool, error) {
	if !resolved.FlagExists {
		return false, newError(ErrFlagNotFound, resolved.qualifiedName())
	}
	if resolved.ValueType != storagefile.Boolean {
		return false, newError(ErrInvalidFlagValueType, resolved.qualifiedName())
	}
	parsed, ok := parseBoolValue(value)
	if !ok {
		return false, &Error{Kind: ErrInvalidFlagValue, Subject: resolved.qualifiedName(), Err: fmt.Errorf("%q is not true or false", value)}
	}
	info, err := f.persistFlagInfoBytes()
	if err != nil {
		return false, err
	}
	attribute, err := storagefile.Attributes(info, resolved.FlagIndex)
	if err != nil {
		return false, err
	}
	if attribute&storagefile.IsReadWrite == 0 {
		return false, newError(ErrFlagReadOnly, resolved.qualifiedName())
	}
	return parsed, nil
}

// writeValueAndAttribute stores value at index in a value file and sets
// attribute in the matching info file, then flushes both.
func writeValueAndAttribute(val, info *storagefile.Mapping, index uint32, value bool, attribute storagefile.Attribute) error {
	if err := storagefile.SetBoolValue(val.Bytes(), index, value); err != nil {
		return err
	}
	if err := storagefile.SetAttribute(info.Bytes(), index, attribute, true); err != nil {
		return err
	}
	if err := val.Sync(); err != nil {
		return err
	}
	return info.Sync()
}

// StageServerOverride writes value into the persist value file. It
// reaches readers at the next ApplyAllStagedOverrides.
func (f *Files) StageServerOverride(resolved PackageFlagContext, value string) error {
	parsed, err := f.checkOverridable(resolved, value)
	if err != nil {
		return err
	}
	if _, err := f.persistFlagValBytes(); err != nil {
		return err
	}
	return writeValueAndAttribute(f.persistFlagVal, f.persistFlagInfo, resolved.FlagIndex, parsed, storagefile.HasServerOverride)
}

// StageLocalOverride records a local override in the container's local
// overrides file, replacing any previous local override of the flag.
func (f *Files) StageLocalOverride(resolved PackageFlagContext, value string) error {
	if _, err := f.checkOverridable(resolved, value); err != nil {
		return err
	}

	overrides, err := f.LocalOverrides()
	if err != nil {
		return err
	}
	replaced := false
	for i := range overrides {
		if overrides[i].Package == resolved.Package && overrides[i].Flag == resolved.Flag {
			overrides[i].Value = value
			replaced = true
			break
		}
	}
	if !replaced {
		overrides = append(overrides, FlagOverride{Package: resolved.Package, Flag: resolved.Flag, Value: value})
	}
	if err := f.writeLocalOverrides(overrides); err != nil {
		return err
	}

	if err := storagefile.SetAttribute(f.persistFlagInfo.Bytes(), resolved.FlagIndex, storagefile.HasLocalOverride, true); err != nil {
		return err
	}
	return f.persistFlagInfo.Sync()
}

// StageAndApplyLocalOverride stages a local override and writes it into
// the boot copy so that readers see it without a reboot.
func (f *Files) StageAndApplyLocalOverride(resolved PackageFlagContext, value string) error {
	if err := f.StageLocalOverride(resolved, value); err != nil {
		return err
	}
	parsed, _ := parseBoolValue(value)
	return f.applyLocalOverrideToBoot(resolved.FlagIndex, parsed)
}

func (f *Files) applyLocalOverrideToBoot(index uint32, value bool) error {
	if !f.HasBootCopy() {
		return newError(ErrNoBootCopy, f.record.Container)
	}
	if _, err := f.bootFlagValBytes(); err != nil {
		return err
	}
	if _, err := f.bootFlagInfoBytes(); err != nil {
		return err
	}
	return writeValueAndAttribute(f.bootFlagVal, f.bootFlagInfo, index, value, storagefile.HasLocalOverride)
}

// ApplyAllStagedOverrides replaces the boot copy with the persist files
// (carrying server overrides) and applies every local override on top.
// Local overrides naming flags the container no longer declares are
// skipped.
func (f *Files) ApplyAllStagedOverrides() error {
	if err := f.closeBootMappings(); err != nil {
		return err
	}
	if err := fileutil.CopyFile(f.record.PersistFlagVal, f.record.BootFlagVal, 0o644); err != nil {
		return err
	}
	if err := fileutil.CopyFile(f.record.PersistFlagInfo, f.record.BootFlagInfo, 0o644); err != nil {
		return err
	}

	overrides, err := f.LocalOverrides()
	if err != nil {
		return err
	}
	for _, override := range overrides {
		resolved, err := f.PackageFlagContext(override.Package, override.Flag)
		if err != nil {
			return err
		}
		if !resolved.FlagExists {
			continue
		}
		value, ok := parseBoolValue(override.Value)
		if !ok {
			continue
		}
		if err := f.applyLocalOverrideToBoot(resolved.FlagIndex, value); err != nil {
			return err
		}
	}
	return nil
}

// RemoveLocalOverride drops the local override of the resolved flag.
// With immediate, the boot copy reverts to the persist value at once;
// otherwise the change takes effect at the next apply.
func (f *Files) RemoveLocalOverride(resolved PackageFlagContext, immediate bool) error {
	if !resolved.FlagExists {
		return newError(ErrFlagNotFound, resolved.qualifiedName())
	}
	overrides, err := f.LocalOverrides()
	if err != nil {
		return err
	}
	index := slices.IndexFunc(overrides, func(override FlagOverride) bool {
		return override.Package == resolved.Package && override.Flag == resolved.Flag
	})
	if index < 0 {
		return newError(ErrNoLocalOverride, resolved.qualifiedName())
	}
	overrides = slices.Delete(overrides, index, index+1)
	if err := f.writeLocalOverrides(overrides); err != nil {
		return err
	}
	if err := f.clearLocalOverride(resolved.FlagIndex, immediate); err != nil {
		return err
	}
	return nil
}

// RemoveAllLocalOverrides drops every local override in the container.
func (f *Files) RemoveAllLocalOverrides(immediate bool) error {
	overrides, err := f.LocalOverrides()
	if err != nil {
		return err
	}
	for _, override := range overrides {
		resolved, err := f.PackageFlagContext(override.Package, override.Flag)
		if err != nil {
			return err
		}
		if !resolved.FlagExists {
			continue
		}
		if err := f.clearLocalOverride(resolved.FlagIndex, immediate); err != nil {
			return err
		}
	}
	return f.writeLocalOverrides(nil)
}

// clearLocalOverride clears the local override attribute in the persist
// info and, with immediate, restores the boot value from persist.
func (f *Files) clearLocalOverride(index uint32, immediate bool) error {
	info, err := f.persistFlagInfoBytes()
	if err != nil {
		return err
	}
	if err := storagefile.SetAttribute(info, index, storagefile.HasLocalOverride, false); err != nil {
		return err
	}
	if err := f.persistFlagInfo.Sync(); err != nil {
		return err
	}
	if !immediate || !f.HasBootCopy() {
		return nil
	}

	persistVal, err := f.persistFlagValBytes()
	if err != nil {
		return err
	}
	value, err := storagefile.BoolValue(persistVal, index)
	if err != nil {
		return err
	}
	if _, err := f.bootFlagValBytes(); err != nil {
		return err
	}
	if _, err := f.bootFlagInfoBytes(); err != nil {
		return err
	}
	if err := storagefile.SetBoolValue(f.bootFlagVal.Bytes(), index, value); err != nil {
		return err
	}
	if err := storagefile.SetAttribute(f.bootFlagInfo.Bytes(), index, storagefile.HasLocalOverride, false); err != nil {
		return err
	}
	if err := f.bootFlagVal.Sync(); err != nil {
		return err
	}
	return f.bootFlagInfo.Sync()
}

// LocalOverrides returns the container's staged local overrides in the
// order they were first staged.
func (f *Files) LocalOverrides() ([]FlagOverride, error) {
	var stored LocalOverrides
	if err := fileutil.ReadCBOR(f.record.LocalOverrides, &stored); err != nil {
		return nil, fmt.Errorf("local overrides of container %s: %w", f.record.Container, err)
	}
	return stored.Overrides, nil
}

func (f *Files) writeLocalOverrides(overrides []FlagOverride) error {
	if overrides == nil {
		overrides = []FlagOverride{}
	}
	if err := fileutil.WriteCBOR(f.record.LocalOverrides, LocalOverrides{Overrides: overrides}); err != nil {
		return fmt.Errorf("local overrides of container %s: %w", f.record.Container, err)
	}
	return nil
}

// ServerOverrides returns every flag carrying a server override with its
// persist value, sorted by package then flag.
func (f *Files) ServerOverrides() ([]FlagValueSummary, error) {
	var summaries []FlagValueSummary
	err := f.forEachFlag(func(packageName string, flag storagefile.FlagEntry, index uint32) error {
		info, err := f.persistFlagInfoBytes()
		if err != nil {
			return err
		}
		attribute, err := storagefile.Attributes(info, index)
		if err != nil {
			return err
		}
		if attribute&storagefile.HasServerOverride == 0 {
			return nil
		}
		val, err := f.persistFlagValBytes()
		if err != nil {
			return err
		}
		value, err := storagefile.BoolValue(val, index)
		if err != nil {
			return err
		}
		summaries = append(summaries, FlagValueSummary{
			Package: packageName,
			Flag:    flag.Name,
			Value:   formatBoolValue(value),
			Type:    flag.Type,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(summaries, func(a, b FlagValueSummary) int {
		return cmp.Or(cmp.Compare(a.Package, b.Package), cmp.Compare(a.Flag, b.Flag))
	})
	return summaries, nil
}

// forEachFlag calls visit for every flag in the container with its
// package name and global index.
func (f *Files) forEachFlag(visit func(packageName string, flag storagefile.FlagEntry, index uint32) error) error {
	packageMap, err := f.packageMapBytes()
	if err != nil {
		return err
	}
	packages, err := storagefile.Packages(packageMap)
	if err != nil {
		return fmt.Errorf("listing packages of container %s: %w", f.record.Container, err)
	}
	byID := make(map[uint32]storagefile.PackageInfo, len(packages))
	for _, info := range packages {
		byID[info.PackageID] = info
	}

	flagMap, err := f.flagMapBytes()
	if err != nil {
		return err
	}
	flags, err := storagefile.Flags(flagMap)
	if err != nil {
		return fmt.Errorf("listing flags of container %s: %w", f.record.Container, err)
	}
	for _, flag := range flags {
		info, ok := byID[flag.PackageID]
		if !ok {
			return fmt.Errorf("container %s: flag %s references unknown package id %d", f.record.Container, flag.Name, flag.PackageID)
		}
		if err := visit(info.Name, flag, info.BooleanStartIndex+uint32(flag.Index)); err != nil {
			return err
		}
	}
	return nil
}
