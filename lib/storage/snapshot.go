// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"github.com/bureau-foundation/aconfigd/lib/storagefile"
)

// FlagSnapshot is the full state of one flag across its default,
// persist, local override, and boot values. ServerValue and LocalValue
// are empty unless the corresponding override is present. BootValue is
// empty when the container has no boot copy.
type FlagSnapshot struct {
	Container            string `cbor:"container" json:"container"`
	Package              string `cbor:"package" json:"package"`
	Flag                 string `cbor:"flag" json:"flag"`
	ServerValue          string `cbor:"server_value" json:"server_value"`
	LocalValue           string `cbor:"local_value" json:"local_value"`
	BootValue            string `cbor:"boot_value" json:"boot_value"`
	DefaultValue         string `cbor:"default_value" json:"default_value"`
	IsReadWrite          bool   `cbor:"is_readwrite" json:"is_readwrite"`
	HasServerOverride    bool   `cbor:"has_server_override" json:"has_server_override"`
	HasLocalOverride     bool   `cbor:"has_local_override" json:"has_local_override"`
	HasBootLocalOverride bool   `cbor:"has_boot_local_override" json:"has_boot_local_override"`
}

// FlagSnapshot returns the state of packageName.flagName, or nil when the
// container does not declare the flag.
func (f *Files) FlagSnapshot(packageName, flagName string) (*FlagSnapshot, error) {
	resolved, err := f.PackageFlagContext(packageName, flagName)
	if err != nil {
		return nil, err
	}
	if !resolved.FlagExists {
		return nil, nil
	}
	localValues, err := f.localOverrideValues()
	if err != nil {
		return nil, err
	}
	return f.snapshotAt(packageName, flagName, resolved.FlagIndex, localValues)
}

// ListFlagsInPackage returns a snapshot of every flag in packageName.
func (f *Files) ListFlagsInPackage(packageName string) ([]FlagSnapshot, error) {
	return f.listFlags(func(name string) bool { return name == packageName })
}

// ListAllFlags returns a snapshot of every flag in the container.
func (f *Files) ListAllFlags() ([]FlagSnapshot, error) {
	return f.listFlags(func(string) bool { return true })
}

func (f *Files) listFlags(include func(packageName string) bool) ([]FlagSnapshot, error) {
	localValues, err := f.localOverrideValues()
	if err != nil {
		return nil, err
	}
	var snapshots []FlagSnapshot
	err = f.forEachFlag(func(packageName string, flag storagefile.FlagEntry, index uint32) error {
		if !include(packageName) {
			return nil
		}
		snapshot, err := f.snapshotAt(packageName, flag.Name, index, localValues)
		if err != nil {
			return err
		}
		snapshots = append(snapshots, *snapshot)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

// localOverrideValues indexes the local overrides file by "package.flag".
func (f *Files) localOverrideValues() (map[string]string, error) {
	overrides, err := f.LocalOverrides()
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(overrides))
	for _, override := range overrides {
		values[override.Package+"."+override.Flag] = override.Value
	}
	return values, nil
}

func (f *Files) snapshotAt(packageName, flagName string, index uint32, localValues map[string]string) (*FlagSnapshot, error) {
	snapshot := &FlagSnapshot{
		Container: f.record.Container,
		Package:   packageName,
		Flag:      flagName,
	}

	persistInfo, err := f.persistFlagInfoBytes()
	if err != nil {
		return nil, err
	}
	attribute, err := storagefile.Attributes(persistInfo, index)
	if err != nil {
		return nil, err
	}
	snapshot.IsReadWrite = attribute&storagefile.IsReadWrite != 0
	snapshot.HasServerOverride = attribute&storagefile.HasServerOverride != 0
	snapshot.HasLocalOverride = attribute&storagefile.HasLocalOverride != 0

	if snapshot.HasServerOverride {
		persistVal, err := f.persistFlagValBytes()
		if err != nil {
			return nil, err
		}
		value, err := storagefile.BoolValue(persistVal, index)
		if err != nil {
			return nil, err
		}
		snapshot.ServerValue = formatBoolValue(value)
	}
	if snapshot.HasLocalOverride {
		snapshot.LocalValue = localValues[packageName+"."+flagName]
	}

	defaultVal, err := f.defaultFlagValBytes()
	if err != nil {
		return nil, err
	}
	defaultValue, err := storagefile.BoolValue(defaultVal, index)
	if err != nil {
		return nil, err
	}
	snapshot.DefaultValue = formatBoolValue(defaultValue)

	if f.HasBootCopy() {
		bootVal, err := f.bootFlagValBytes()
		if err != nil {
			return nil, err
		}
		bootValue, err := storagefile.BoolValue(bootVal, index)
		if err != nil {
			return nil, err
		}
		snapshot.BootValue = formatBoolValue(bootValue)

		bootInfo, err := f.bootFlagInfoBytes()
		if err != nil {
			return nil, err
		}
		bootAttribute, err := storagefile.Attributes(bootInfo, index)
		if err != nil {
			return nil, err
		}
		snapshot.HasBootLocalOverride = bootAttribute&storagefile.HasLocalOverride != 0
	}
	return snapshot, nil
}
