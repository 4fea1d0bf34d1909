// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"fmt"
	"path/filepath"

	"github.com/bureau-foundation/aconfigd/lib/fileutil"
)

// Subdirectories of the storage root.
const (
	MapsDir  = "maps"
	FlagsDir = "flags"
	BootDir  = "boot"
)

// OTAStagingFile is the path of the staged OTA flag file relative to the
// storage root.
const OTAStagingFile = "flags/ota.cbor"

// Record locates every file belonging to one container.
type Record struct {
	Version   uint32
	Container string

	DefaultPackageMap string
	DefaultFlagMap    string
	DefaultFlagVal    string
	DefaultFlagInfo   string

	PersistPackageMap string
	PersistFlagMap    string
	PersistFlagVal    string
	PersistFlagInfo   string
	LocalOverrides    string

	BootFlagVal  string
	BootFlagInfo string

	// Digest is the hex BLAKE3 digest of the four default files at the
	// time they were copied.
	Digest string
}

// newRecord fills in the daemon-owned paths for container under rootDir.
func newRecord(rootDir, container string) Record {
	return Record{
		Container:         container,
		PersistPackageMap: filepath.Join(rootDir, MapsDir, container+".package.map"),
		PersistFlagMap:    filepath.Join(rootDir, MapsDir, container+".flag.map"),
		PersistFlagVal:    filepath.Join(rootDir, FlagsDir, container+".val"),
		PersistFlagInfo:   filepath.Join(rootDir, FlagsDir, container+".info"),
		LocalOverrides:    filepath.Join(rootDir, FlagsDir, container+"_local_overrides.cbor"),
		BootFlagVal:       filepath.Join(rootDir, BootDir, container+".val"),
		BootFlagInfo:      filepath.Join(rootDir, BootDir, container+".info"),
	}
}

// PersistRecord is the durable form of a Record: enough to rebuild it
// after a daemon restart without touching the default files.
type PersistRecord struct {
	Version    uint32 `cbor:"version"`
	Container  string `cbor:"container"`
	PackageMap string `cbor:"package_map"`
	FlagMap    string `cbor:"flag_map"`
	FlagVal    string `cbor:"flag_val"`
	FlagInfo   string `cbor:"flag_info"`
	Digest     string `cbor:"digest"`
}

// PersistRecords is the content of the storage records file.
type PersistRecords struct {
	Records []PersistRecord `cbor:"records"`
}

// ReadPersistRecords loads the records file. A missing file yields no
// records.
func ReadPersistRecords(path string) (PersistRecords, error) {
	var records PersistRecords
	if err := fileutil.ReadCBOR(path, &records); err != nil {
		return PersistRecords{}, fmt.Errorf("reading storage records: %w", err)
	}
	return records, nil
}

func (r Record) persistRecord() PersistRecord {
	return PersistRecord{
		Version:    r.Version,
		Container:  r.Container,
		PackageMap: r.DefaultPackageMap,
		FlagMap:    r.DefaultFlagMap,
		FlagVal:    r.DefaultFlagVal,
		FlagInfo:   r.DefaultFlagInfo,
		Digest:     r.Digest,
	}
}

// FlagOverride is one override as stored in the local overrides file
// and the OTA staging file.
type FlagOverride struct {
	Package string `cbor:"package" json:"package"`
	Flag    string `cbor:"flag" json:"flag"`
	Value   string `cbor:"value" json:"value"`
}

// LocalOverrides is the content of a container's local overrides file.
type LocalOverrides struct {
	Overrides []FlagOverride `cbor:"overrides"`
}

// OTAStaging is the content of the OTA staging file: overrides that
// become server overrides once the device boots the named build.
type OTAStaging struct {
	BuildID   string         `cbor:"build_id" json:"build_id"`
	Overrides []FlagOverride `cbor:"overrides" json:"overrides"`
}
