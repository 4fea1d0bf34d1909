// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bureau-foundation/aconfigd/lib/buildprop"
	"github.com/bureau-foundation/aconfigd/lib/config"
	"github.com/bureau-foundation/aconfigd/lib/fileutil"
	"github.com/bureau-foundation/aconfigd/lib/storage"
	"github.com/bureau-foundation/aconfigd/lib/storagefile"
)

// Daemon serves one storage root. Immutable-after-construction fields
// (config, logger) are safe to read without the lock; the manager is
// only touched under mu.
type Daemon struct {
	config *config.Config
	logger *slog.Logger

	mu      sync.Mutex
	manager *storage.Manager
}

// New creates the storage directories of cfg and returns a daemon with
// no registered containers.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return &Daemon{
		config:  cfg,
		logger:  logger,
		manager: storage.NewManager(cfg.Storage.Root, logger),
	}, nil
}

// Close unmaps every storage file.
func (d *Daemon) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.manager.Close()
}

func (d *Daemon) bootDir() string {
	return filepath.Join(d.config.Storage.Root, storage.BootDir)
}

// writeRecords persists the manager's containers. Callers hold mu.
func (d *Daemon) writeRecords() error {
	return d.manager.WritePersistStorageRecords(d.config.Storage.Records)
}

// InitializeFromStorageRecord registers every container named in the
// records file.
func (d *Daemon) InitializeFromStorageRecord() error {
	records, err := storage.ReadPersistRecords(d.config.Storage.Records)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, record := range records.Records {
		d.manager.AddStorageFilesFromRecord(record)
	}
	d.logger.Debug("loaded storage records",
		"path", d.config.Storage.Records,
		"containers", len(records.Records),
	)
	return nil
}

// RemoveBootFiles deletes the boot copies of every recorded container.
func (d *Daemon) RemoveBootFiles() error {
	records, err := storage.ReadPersistRecords(d.config.Storage.Records)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, record := range records.Records {
		d.logger.Debug("removing boot storage files", "container", record.Container)
		for _, suffix := range []string{".val", ".info"} {
			if err := fileutil.RemoveIfExists(filepath.Join(d.bootDir(), record.Container+suffix)); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveNonPlatformBootFiles deletes every boot file whose name does
// not start with a platform container name. A file that cannot be
// removed is logged and skipped.
func (d *Daemon) RemoveNonPlatformBootFiles() error {
	entries, err := os.ReadDir(d.bootDir())
	if err != nil {
		return fmt.Errorf("reading boot directory: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if d.isPlatformFile(entry.Name()) {
			continue
		}
		path := filepath.Join(d.bootDir(), entry.Name())
		if err := fileutil.Remove(path); err != nil {
			d.logger.Warn("failed to remove boot file", "path", path, "error", err)
		}
	}
	return nil
}

func (d *Daemon) isPlatformFile(name string) bool {
	for _, container := range d.config.Containers.Platform {
		if strings.HasPrefix(name, container) {
			return true
		}
	}
	return false
}

// defaultFiles is the set of default storage files in one directory.
type defaultFiles struct {
	packageMap, flagMap, flagVal, flagInfo string
}

// findDefaultFiles returns the default storage files in dir. The
// boolean is false when a file is missing or flag.val is empty.
func findDefaultFiles(dir string) (defaultFiles, bool, error) {
	files := defaultFiles{
		packageMap: filepath.Join(dir, storagefile.PackageMapName),
		flagMap:    filepath.Join(dir, storagefile.FlagMapName),
		flagVal:    filepath.Join(dir, storagefile.FlagValName),
		flagInfo:   filepath.Join(dir, storagefile.FlagInfoName),
	}
	for _, path := range []string{files.packageMap, files.flagMap, files.flagVal, files.flagInfo} {
		if !fileutil.Exists(path) {
			return files, false, nil
		}
	}
	info, err := os.Stat(files.flagVal)
	if err != nil {
		return files, false, fmt.Errorf("reading metadata of %s: %w", files.flagVal, err)
	}
	return files, info.Size() > 0, nil
}

// addOrUpdate registers container from files and persists the records.
// Callers hold mu.
func (d *Daemon) addOrUpdate(container string, files defaultFiles) error {
	if err := d.manager.AddOrUpdateContainerStorageFiles(container,
		files.packageMap, files.flagMap, files.flagVal, files.flagInfo); err != nil {
		return err
	}
	return d.writeRecords()
}

// InitializePlatformStorage registers or updates every platform
// partition that ships storage files, applies staged OTA flags, and
// recreates the boot copies of the initialized partitions.
func (d *Daemon) InitializePlatformStorage() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var initialized []string
	for _, container := range d.config.Containers.Platform {
		dir := filepath.Join(d.config.Containers.PartitionsRoot, container, "etc", "aconfig")
		files, found, err := findDefaultFiles(dir)
		if err != nil {
			return err
		}
		if !found {
			d.logger.Debug("skipping container without storage files", "container", container, "dir", dir)
			continue
		}
		if err := d.addOrUpdate(container, files); err != nil {
			return fmt.Errorf("initializing %s: %w", container, err)
		}
		initialized = append(initialized, container)
	}

	if buildID, ok := d.deviceBuildID(); ok {
		if err := d.manager.ApplyStagedOTAFlags(buildID); err != nil {
			return err
		}
	}

	for _, container := range initialized {
		if err := d.manager.ApplyAllStagedOverrides(container); err != nil {
			return fmt.Errorf("applying overrides of %s: %w", container, err)
		}
	}
	d.logger.Info("initialized platform storage", "containers", initialized)
	return nil
}

// deviceBuildID reads the build fingerprint. The boolean is false when
// it is unavailable, in which case staged OTA flags stay staged.
func (d *Daemon) deviceBuildID() (string, bool) {
	build := d.config.Build
	fingerprint, found, err := buildprop.Lookup(build.PropFile, build.FingerprintProperty)
	if err != nil {
		d.logger.Warn("cannot read build fingerprint, leaving OTA flags staged",
			"prop_file", build.PropFile, "error", err)
		return "", false
	}
	if !found || fingerprint == "" {
		d.logger.Warn("build fingerprint not set, leaving OTA flags staged",
			"prop_file", build.PropFile, "property", build.FingerprintProperty)
		return "", false
	}
	return fingerprint, true
}

// apexContainers lists the container directories under apexDir in name
// order. Hidden entries, versioned mounts (name@version), and
// sharedlibs are skipped.
func apexContainers(apexDir string) ([]string, error) {
	entries, err := os.ReadDir(apexDir)
	if err != nil {
		return nil, err
	}
	var containers []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.Contains(name, "@") || name == "sharedlibs" {
			continue
		}
		info, err := os.Stat(filepath.Join(apexDir, name))
		if err != nil || !info.IsDir() {
			continue
		}
		containers = append(containers, name)
	}
	return containers, nil
}

// InitializeMainlineStorage registers or updates every apex under
// apexDir that ships storage files and recreates its boot copy. A
// missing apexDir means there is nothing to initialize.
func (d *Daemon) InitializeMainlineStorage(apexDir string) error {
	containers, err := apexContainers(apexDir)
	if errors.Is(err, os.ErrNotExist) {
		d.logger.Info("apex directory does not exist, nothing to initialize", "dir", apexDir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading apex directory: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var initialized []string
	for _, container := range containers {
		files, found, err := findDefaultFiles(filepath.Join(apexDir, container, "etc"))
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := d.addOrUpdate(container, files); err != nil {
			return fmt.Errorf("initializing %s: %w", container, err)
		}
		if err := d.manager.ApplyAllStagedOverrides(container); err != nil {
			return fmt.Errorf("applying overrides of %s: %w", container, err)
		}
		initialized = append(initialized, container)
	}
	d.logger.Info("initialized mainline storage", "dir", apexDir, "containers", initialized)
	return nil
}
