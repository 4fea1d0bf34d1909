// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/aconfigd/lib/storage"
)

// Socket actions served by the daemon.
const (
	ActionNewStorage          = "new-storage"
	ActionOverrideFlag        = "override-flag"
	ActionStageOTA            = "stage-ota"
	ActionQueryFlag           = "query-flag"
	ActionRemoveLocalOverride = "remove-local-override"
	ActionResetStorage        = "reset-storage"
	ActionListStorage         = "list-storage"
	ActionStatus              = "status"
)

// NewStorageRequest registers a container's default storage files, or
// updates them when the container is already known.
type NewStorageRequest struct {
	Container  string `cbor:"container"`
	PackageMap string `cbor:"package_map"`
	FlagMap    string `cbor:"flag_map"`
	FlagVal    string `cbor:"flag_val"`
	FlagInfo   string `cbor:"flag_info"`
}

// Validate checks that every field is set and that the container name
// is a single path element, since it names files under the storage root.
func (r NewStorageRequest) Validate() error {
	var errs []error
	for _, field := range []struct{ name, value string }{
		{"container", r.Container},
		{"package_map", r.PackageMap},
		{"flag_map", r.FlagMap},
		{"flag_val", r.FlagVal},
		{"flag_info", r.FlagInfo},
	} {
		if field.value == "" {
			errs = append(errs, fmt.Errorf("new storage request: %s is required", field.name))
		}
	}
	if r.Container == "." || r.Container == ".." || strings.ContainsAny(r.Container, "/\x00") {
		errs = append(errs, fmt.Errorf("new storage request: invalid container name %q", r.Container))
	}
	return errors.Join(errs...)
}

// OverrideFlagRequest overrides one flag. OverrideType is one of the
// storage.OverrideType names; empty means server-on-reboot.
type OverrideFlagRequest struct {
	Package      string `cbor:"package"`
	Flag         string `cbor:"flag"`
	Value        string `cbor:"value"`
	OverrideType string `cbor:"override_type,omitempty"`
}

// FlagOverride is one package/flag/value triple.
type FlagOverride = storage.FlagOverride

// StageOTARequest stages server overrides that take effect once the
// device boots BuildID.
type StageOTARequest struct {
	BuildID   string         `cbor:"build_id"`
	Overrides []FlagOverride `cbor:"overrides"`
}

// QueryFlagRequest asks for the snapshot of one flag.
type QueryFlagRequest struct {
	Package string `cbor:"package"`
	Flag    string `cbor:"flag"`
}

// Local override removal types.
const (
	RemoveLocalOnReboot  = "remove-local-on-reboot"
	RemoveLocalImmediate = "remove-local-immediate"
)

// RemoveLocalOverrideRequest removes the local override of one flag,
// or every local override when RemoveAll is set.
type RemoveLocalOverrideRequest struct {
	RemoveAll  bool   `cbor:"remove_all,omitempty"`
	Package    string `cbor:"package,omitempty"`
	Flag       string `cbor:"flag,omitempty"`
	RemoveType string `cbor:"remove_type,omitempty"`
}

// Immediate reports whether the removal also restores the boot copy.
// An empty RemoveType means on reboot.
func (r RemoveLocalOverrideRequest) Immediate() (bool, error) {
	switch r.RemoveType {
	case "", RemoveLocalOnReboot:
		return false, nil
	case RemoveLocalImmediate:
		return true, nil
	default:
		return false, fmt.Errorf("unknown remove type %q (want %s or %s)", r.RemoveType, RemoveLocalOnReboot, RemoveLocalImmediate)
	}
}

// ErrInvalidListStorage is returned for a list request that does not
// name exactly one selector.
var ErrInvalidListStorage = errors.New("invalid list storage type")

// ListStorageRequest selects the flags to list. Exactly one of All,
// Container, and Package must be set.
type ListStorageRequest struct {
	All       bool   `cbor:"all,omitempty"`
	Container string `cbor:"container,omitempty"`
	Package   string `cbor:"package,omitempty"`
}

// Validate checks that exactly one selector is set.
func (r ListStorageRequest) Validate() error {
	selected := 0
	if r.All {
		selected++
	}
	if r.Container != "" {
		selected++
	}
	if r.Package != "" {
		selected++
	}
	if selected != 1 {
		return ErrInvalidListStorage
	}
	return nil
}

// FlagSnapshot is the state of one flag as reported by query-flag and
// list-storage.
type FlagSnapshot = storage.FlagSnapshot

// ListStorageResponse is the result of list-storage.
type ListStorageResponse struct {
	Flags []FlagSnapshot `cbor:"flags"`
}

// StatusResponse is the result of status.
type StatusResponse struct {
	Version    string   `cbor:"version"`
	RootDir    string   `cbor:"root_dir"`
	Containers []string `cbor:"containers"`
}
