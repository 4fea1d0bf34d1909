// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/bureau-foundation/aconfigd/lib/fileutil"
)

// OverrideType selects how a flag override takes effect.
type OverrideType string

const (
	// ServerOnReboot stages a server override into the persist files.
	ServerOnReboot OverrideType = "server-on-reboot"

	// LocalOnReboot stages a local override applied at the next boot.
	LocalOnReboot OverrideType = "local-on-reboot"

	// LocalImmediate stages a local override and applies it to the
	// current boot copy.
	LocalImmediate OverrideType = "local-immediate"
)

// ParseOverrideType validates an override type name. The empty string
// selects ServerOnReboot.
func ParseOverrideType(name string) (OverrideType, error) {
	switch OverrideType(name) {
	case "", ServerOnReboot:
		return ServerOnReboot, nil
	case LocalOnReboot, LocalImmediate:
		return OverrideType(name), nil
	default:
		return "", fmt.Errorf("unknown override type %q (want %s, %s, or %s)", name, ServerOnReboot, LocalOnReboot, LocalImmediate)
	}
}

// Manager owns the storage files of every registered container.
type Manager struct {
	rootDir string
	logger  *slog.Logger

	containers map[string]*Files

	// packageToContainer caches successful package lookups. Entries for
	// a container are dropped whenever its files are recreated.
	packageToContainer map[string]string
}

// NewManager creates an empty manager rooted at rootDir. The maps,
// flags, and boot subdirectories must exist.
func NewManager(rootDir string, logger *slog.Logger) *Manager {
	return &Manager{
		rootDir:            rootDir,
		logger:             logger,
		containers:         make(map[string]*Files),
		packageToContainer: make(map[string]string),
	}
}

// RootDir returns the storage root directory.
func (m *Manager) RootDir() string { return m.rootDir }

// StorageFiles returns the files of container, or nil.
func (m *Manager) StorageFiles(container string) *Files {
	return m.containers[container]
}

// Containers returns the registered container names in sorted order.
func (m *Manager) Containers() []string {
	names := make([]string, 0, len(m.containers))
	for name := range m.containers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (m *Manager) storageFiles(container string) (*Files, error) {
	files, ok := m.containers[container]
	if !ok {
		return nil, newError(ErrStorageFilesNotFound, container)
	}
	return files, nil
}

// AddStorageFilesFromRecord registers a container from a persisted
// record. A container that is already registered is left alone.
func (m *Manager) AddStorageFilesFromRecord(record PersistRecord) {
	if _, exists := m.containers[record.Container]; exists {
		m.logger.Debug("ignoring storage record for registered container", "container", record.Container)
		return
	}
	m.containers[record.Container] = NewFilesFromRecord(m.rootDir, record)
}

func (m *Manager) addStorageFilesFromContainer(container, packageMap, flagMap, flagVal, flagInfo string) (*Files, error) {
	files, err := NewFilesFromContainer(m.rootDir, container, packageMap, flagMap, flagVal, flagInfo)
	if err != nil {
		return nil, err
	}
	m.containers[container] = files
	return files, nil
}

// forgetContainer closes and removes a container's persist files and
// drops it from the package cache.
func (m *Manager) forgetContainer(container string) error {
	files, err := m.storageFiles(container)
	if err != nil {
		return err
	}
	if err := files.RemovePersistFiles(); err != nil {
		return err
	}
	delete(m.containers, container)
	for packageName, owner := range m.packageToContainer {
		if owner == container {
			delete(m.packageToContainer, packageName)
		}
	}
	return nil
}

// AddOrUpdateContainerStorageFiles registers a container, or, when its
// default files changed since registration, recreates its persist
// files and carries over every override whose flag still exists.
func (m *Manager) AddOrUpdateContainerStorageFiles(container, packageMap, flagMap, flagVal, flagInfo string) error {
	files, exists := m.containers[container]
	if !exists {
		_, err := m.addStorageFilesFromContainer(container, packageMap, flagMap, flagVal, flagInfo)
		return err
	}

	digest, err := fileutil.Digest(packageMap, flagMap, flagVal, flagInfo)
	if err != nil {
		return fmt.Errorf("digesting storage files of container %s: %w", container, err)
	}
	if files.Record().Digest == digest {
		return nil
	}
	m.logger.Info("container storage files changed, updating", "container", container)
	return m.updateContainerStorageFiles(files, packageMap, flagMap, flagVal, flagInfo)
}

func (m *Manager) updateContainerStorageFiles(files *Files, packageMap, flagMap, flagVal, flagInfo string) error {
	container := files.Container()
	serverOverrides, err := files.ServerOverrides()
	if err != nil {
		return err
	}
	localOverrides, err := files.LocalOverrides()
	if err != nil {
		return err
	}

	if err := m.forgetContainer(container); err != nil {
		return err
	}
	files, err = m.addStorageFilesFromContainer(container, packageMap, flagMap, flagVal, flagInfo)
	if err != nil {
		return err
	}

	for _, override := range serverOverrides {
		resolved, err := files.PackageFlagContext(override.Package, override.Flag)
		if err != nil {
			return err
		}
		if !resolved.FlagExists {
			continue
		}
		if err := files.StageServerOverride(resolved, override.Value); err != nil {
			return err
		}
	}

	var surviving []FlagOverride
	for _, override := range localOverrides {
		resolved, err := files.PackageFlagContext(override.Package, override.Flag)
		if err != nil {
			return err
		}
		if !resolved.FlagExists {
			continue
		}
		if err := files.StageLocalOverride(resolved, override.Value); err != nil {
			return err
		}
		surviving = append(surviving, override)
	}
	return files.writeLocalOverrides(surviving)
}

// ApplyAllStagedOverrides refreshes container's boot copy.
func (m *Manager) ApplyAllStagedOverrides(container string) error {
	files, err := m.storageFiles(container)
	if err != nil {
		return err
	}
	return files.ApplyAllStagedOverrides()
}

// ResetAllStorage recreates every container's persist and boot files
// from its defaults, dropping all overrides.
func (m *Manager) ResetAllStorage() error {
	for _, container := range m.Containers() {
		record := m.containers[container].Record()
		if err := m.forgetContainer(container); err != nil {
			return err
		}
		if _, err := m.addStorageFilesFromContainer(container,
			record.DefaultPackageMap, record.DefaultFlagMap,
			record.DefaultFlagVal, record.DefaultFlagInfo); err != nil {
			return err
		}
	}
	return nil
}

// ContainerForPackage returns the container declaring packageName.
// The boolean is false when no registered container declares it.
// Containers whose package map cannot be read are skipped.
func (m *Manager) ContainerForPackage(packageName string) (string, bool, error) {
	if container, ok := m.packageToContainer[packageName]; ok {
		return container, true, nil
	}
	for _, container := range m.Containers() {
		found, err := m.containers[container].HasPackage(packageName)
		if err != nil {
			m.logger.Warn("skipping container with unreadable package map",
				"container", container, "error", err)
			continue
		}
		if found {
			m.packageToContainer[packageName] = container
			return container, true, nil
		}
	}
	return "", false, nil
}

func (m *Manager) filesForPackage(packageName string) (*Files, error) {
	container, found, err := m.ContainerForPackage(packageName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, newError(ErrContainerNotFound, packageName)
	}
	return m.storageFiles(container)
}

// OverrideFlagValue stages an override of packageName.flagName.
func (m *Manager) OverrideFlagValue(packageName, flagName, value string, overrideType OverrideType) error {
	files, err := m.filesForPackage(packageName)
	if err != nil {
		return err
	}
	resolved, err := files.PackageFlagContext(packageName, flagName)
	if err != nil {
		return err
	}
	switch overrideType {
	case ServerOnReboot:
		return files.StageServerOverride(resolved, value)
	case LocalOnReboot:
		return files.StageLocalOverride(resolved, value)
	case LocalImmediate:
		return files.StageAndApplyLocalOverride(resolved, value)
	default:
		return fmt.Errorf("unknown override type %q", overrideType)
	}
}

// StageOTAFlags writes the OTA staging file, replacing any staged set.
func (m *Manager) StageOTAFlags(staging OTAStaging) error {
	if staging.Overrides == nil {
		staging.Overrides = []FlagOverride{}
	}
	return fileutil.WriteCBOR(filepath.Join(m.rootDir, OTAStagingFile), staging)
}

// otaFlags returns the staged OTA overrides when they target
// deviceBuildID. The staging file is consumed when it matches or names
// no build; it is kept for a later boot otherwise.
func (m *Manager) otaFlags(deviceBuildID string) ([]FlagOverride, error) {
	path := filepath.Join(m.rootDir, OTAStagingFile)
	if !fileutil.Exists(path) {
		return nil, nil
	}
	var staging OTAStaging
	if err := fileutil.ReadCBOR(path, &staging); err != nil {
		return nil, err
	}
	if staging.BuildID == "" {
		return nil, fileutil.Remove(path)
	}
	if staging.BuildID != deviceBuildID {
		m.logger.Info("staged OTA flags target another build",
			"target_build", staging.BuildID, "device_build", deviceBuildID)
		return nil, nil
	}
	if err := fileutil.Remove(path); err != nil {
		return nil, err
	}
	return staging.Overrides, nil
}

// ApplyStagedOTAFlags stages every OTA override as a server override once
// the device runs the build they target. Overrides that fail to stage
// are logged and skipped.
func (m *Manager) ApplyStagedOTAFlags(deviceBuildID string) error {
	overrides, err := m.otaFlags(deviceBuildID)
	if err != nil {
		return err
	}
	for _, override := range overrides {
		if err := m.OverrideFlagValue(override.Package, override.Flag, override.Value, ServerOnReboot); err != nil {
			m.logger.Warn("failed to apply OTA flag override",
				"flag", override.Package+"."+override.Flag, "error", err)
		}
	}
	if len(overrides) > 0 {
		m.logger.Info("applied staged OTA flags", "build", deviceBuildID, "count", len(overrides))
	}
	return nil
}

// WritePersistStorageRecords writes the records file, sorted by
// container.
func (m *Manager) WritePersistStorageRecords(path string) error {
	records := PersistRecords{Records: []PersistRecord{}}
	for _, container := range m.Containers() {
		records.Records = append(records.Records, m.containers[container].Record().persistRecord())
	}
	if err := fileutil.WriteCBOR(path, records); err != nil {
		return fmt.Errorf("writing storage records: %w", err)
	}
	return nil
}

// RemoveLocalOverride drops the local override of packageName.flagName.
func (m *Manager) RemoveLocalOverride(packageName, flagName string, immediate bool) error {
	files, err := m.filesForPackage(packageName)
	if err != nil {
		return err
	}
	resolved, err := files.PackageFlagContext(packageName, flagName)
	if err != nil {
		return err
	}
	return files.RemoveLocalOverride(resolved, immediate)
}

// RemoveAllLocalOverrides drops the local overrides of every container.
func (m *Manager) RemoveAllLocalOverrides(immediate bool) error {
	var errs []error
	for _, container := range m.Containers() {
		if err := m.containers[container].RemoveAllLocalOverrides(immediate); err != nil {
			errs = append(errs, fmt.Errorf("container %s: %w", container, err))
		}
	}
	return errors.Join(errs...)
}

// FlagSnapshot returns the state of packageName.flagName, or nil when no
// container declares it.
func (m *Manager) FlagSnapshot(packageName, flagName string) (*FlagSnapshot, error) {
	container, found, err := m.ContainerForPackage(packageName)
	if err != nil || !found {
		return nil, err
	}
	return m.containers[container].FlagSnapshot(packageName, flagName)
}

// ListFlagsInPackage returns every flag of packageName.
func (m *Manager) ListFlagsInPackage(packageName string) ([]FlagSnapshot, error) {
	files, err := m.filesForPackage(packageName)
	if err != nil {
		return nil, err
	}
	return files.ListFlagsInPackage(packageName)
}

// ListFlagsInContainer returns every flag of container.
func (m *Manager) ListFlagsInContainer(container string) ([]FlagSnapshot, error) {
	files, err := m.storageFiles(container)
	if err != nil {
		return nil, err
	}
	return files.ListAllFlags()
}

// ListAllFlags returns every flag of every container that has a boot
// copy, grouped by container in name order.
func (m *Manager) ListAllFlags() ([]FlagSnapshot, error) {
	var snapshots []FlagSnapshot
	for _, container := range m.Containers() {
		files := m.containers[container]
		if !files.HasBootCopy() {
			continue
		}
		flags, err := files.ListAllFlags()
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, flags...)
	}
	return snapshots, nil
}

// Close unmaps every container's files.
func (m *Manager) Close() error {
	var errs []error
	for _, files := range m.containers {
		errs = append(errs, files.Close())
	}
	return errors.Join(errs...)
}
