// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package flagdecl

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/aconfigd/lib/storagefile"
)

// Permission values accepted in declaration files.
const (
	PermissionReadWrite     = "read-write"
	PermissionReadOnly      = "read-only"
	PermissionFixedReadOnly = "fixed-read-only"
)

// State values accepted in declaration files.
const (
	StateEnabled  = "enabled"
	StateDisabled = "disabled"
)

// Declarations is the content of a declaration file.
type Declarations struct {
	Container string `json:"container"`

	// Version is the storage file version to write. Zero selects
	// storagefile.Version.
	Version uint32 `json:"version,omitempty"`

	Flags []Flag `json:"flags"`
}

// Flag is one declared flag.
type Flag struct {
	Package    string `json:"package"`
	Name       string `json:"name"`
	Permission string `json:"permission"`
	State      string `json:"state"`
}

var (
	packageNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)
	flagNamePattern    = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	containerPattern   = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)
)

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals it into Declarations.
func Parse(data []byte) (*Declarations, error) {
	var declarations Declarations
	if err := json.Unmarshal(jsonc.ToJSON(data), &declarations); err != nil {
		return nil, fmt.Errorf("parsing flag declarations: %w", err)
	}
	return &declarations, nil
}

// ReadFile reads and parses a declaration file.
func ReadFile(path string) (*Declarations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	declarations, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return declarations, nil
}

// Validate returns every structural issue in declarations. An empty
// list means they can be built.
func Validate(declarations *Declarations) []string {
	var issues []string
	if declarations.Container == "" {
		issues = append(issues, "container is required")
	} else if !containerPattern.MatchString(declarations.Container) {
		issues = append(issues, fmt.Sprintf("container %q contains invalid characters", declarations.Container))
	}
	if declarations.Version > storagefile.MaxSupportedVersion {
		issues = append(issues, fmt.Sprintf("version %d is newer than the supported version %d", declarations.Version, storagefile.MaxSupportedVersion))
	}
	if len(declarations.Flags) == 0 {
		issues = append(issues, "at least one flag is required")
	}

	seen := make(map[string]int)
	for i, flag := range declarations.Flags {
		label := fmt.Sprintf("flags[%d]", i)
		if !packageNamePattern.MatchString(flag.Package) {
			issues = append(issues, fmt.Sprintf("%s: invalid package name %q", label, flag.Package))
		}
		if !flagNamePattern.MatchString(flag.Name) {
			issues = append(issues, fmt.Sprintf("%s: invalid flag name %q", label, flag.Name))
		}
		if _, err := storedType(flag.Permission); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", label, err))
		}
		if _, err := stateValue(flag.State); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", label, err))
		}
		qualified := flag.Package + "." + flag.Name
		if first, duplicate := seen[qualified]; duplicate {
			issues = append(issues, fmt.Sprintf("%s: %s is already declared by flags[%d]", label, qualified, first))
		} else {
			seen[qualified] = i
		}
	}
	return issues
}

// StorageVersion returns the version to build with.
func (d *Declarations) StorageVersion() uint32 {
	if d.Version == 0 {
		return storagefile.Version
	}
	return d.Version
}

// StorageDeclarations converts the declared flags for storagefile.Build.
func (d *Declarations) StorageDeclarations() ([]storagefile.Declaration, error) {
	result := make([]storagefile.Declaration, 0, len(d.Flags))
	for _, flag := range d.Flags {
		flagType, err := storedType(flag.Permission)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", flag.Package, flag.Name, err)
		}
		value, err := stateValue(flag.State)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", flag.Package, flag.Name, err)
		}
		result = append(result, storagefile.Declaration{
			Package: flag.Package,
			Name:    flag.Name,
			Type:    flagType,
			Value:   value,
		})
	}
	return result, nil
}

func storedType(permission string) (storagefile.StoredFlagType, error) {
	switch permission {
	case PermissionReadWrite:
		return storagefile.ReadWriteBoolean, nil
	case PermissionReadOnly:
		return storagefile.ReadOnlyBoolean, nil
	case PermissionFixedReadOnly:
		return storagefile.FixedReadOnlyBoolean, nil
	default:
		return 0, fmt.Errorf("unknown permission %q (want %s, %s, or %s)",
			permission, PermissionReadWrite, PermissionReadOnly, PermissionFixedReadOnly)
	}
}

func stateValue(state string) (bool, error) {
	switch state {
	case StateEnabled:
		return true, nil
	case StateDisabled:
		return false, nil
	default:
		return false, fmt.Errorf("unknown state %q (want %s or %s)", state, StateEnabled, StateDisabled)
	}
}
