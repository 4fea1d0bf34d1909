// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/bureau-foundation/aconfigd/lib/ipc"
)

// Values shown for a flag.
const (
	valueEnabled  = "enabled"
	valueDisabled = "disabled"
)

// Provenance of a flag's current value.
const (
	provenanceDefault = "default"
	provenanceServer  = "server"
	provenanceLocal   = "local"
)

// Permissions shown for a flag.
const (
	permissionReadWrite = "read-write"
	permissionReadOnly  = "read-only"
)

// flagRow is one flag as presented to the user.
type flagRow struct {
	Package    string `json:"package"`
	Name       string `json:"name"`
	Container  string `json:"container"`
	Value      string `json:"value"`
	Staged     string `json:"staged_value,omitempty"`
	Provenance string `json:"provenance"`
	Permission string `json:"permission"`

	// socket is the daemon that reported the flag.
	socket string
}

func (f flagRow) qualifiedName() string {
	return ipc.QualifiedName(f.Package, f.Name)
}

// displayStaged renders the staged value column.
func (f flagRow) displayStaged() string {
	if f.Permission == permissionReadOnly || f.Staged == "" {
		return "-"
	}
	return "(->" + f.Staged + ")"
}

// parseFlagValue accepts the daemon's "true"/"false" and the display
// names.
func parseFlagValue(value string) (string, error) {
	switch value {
	case "true", valueEnabled:
		return valueEnabled, nil
	case "false", valueDisabled:
		return valueDisabled, nil
	default:
		return "", fmt.Errorf("cannot convert string '%s' to flag value", value)
	}
}

// newFlagRow derives the presented state of a flag from its snapshot.
func newFlagRow(snapshot ipc.FlagSnapshot, socket string) (flagRow, error) {
	qualified := ipc.QualifiedName(snapshot.Package, snapshot.Flag)
	if snapshot.BootValue == "" {
		return flagRow{}, fmt.Errorf("no boot flag value for %s", qualified)
	}
	value, err := parseFlagValue(snapshot.BootValue)
	if err != nil {
		return flagRow{}, fmt.Errorf("%s: %w", qualified, err)
	}

	provenance := provenanceServer
	switch {
	case snapshot.HasBootLocalOverride:
		provenance = provenanceLocal
	case snapshot.BootValue == snapshot.DefaultValue:
		provenance = provenanceDefault
	}

	staged := ""
	switch {
	case snapshot.HasLocalOverride:
		if snapshot.LocalValue != snapshot.BootValue {
			if staged, err = parseFlagValue(snapshot.LocalValue); err != nil {
				return flagRow{}, fmt.Errorf("%s: local value: %w", qualified, err)
			}
		}
	case snapshot.ServerValue != "" && snapshot.ServerValue != snapshot.BootValue:
		if staged, err = parseFlagValue(snapshot.ServerValue); err != nil {
			return flagRow{}, fmt.Errorf("%s: server value: %w", qualified, err)
		}
	case snapshot.HasBootLocalOverride && snapshot.BootValue != snapshot.DefaultValue:
		if staged, err = parseFlagValue(snapshot.DefaultValue); err != nil {
			return flagRow{}, fmt.Errorf("%s: default value: %w", qualified, err)
		}
	}

	permission := permissionReadOnly
	if snapshot.IsReadWrite {
		permission = permissionReadWrite
	}

	return flagRow{
		Package:    snapshot.Package,
		Name:       snapshot.Flag,
		Container:  snapshot.Container,
		Value:      value,
		Staged:     staged,
		Provenance: provenance,
		Permission: permission,
		socket:     socket,
	}, nil
}

// filterContainer keeps the rows of container, or every row when
// container is empty.
func filterContainer(rows []flagRow, container string) []flagRow {
	if container == "" {
		return rows
	}
	var filtered []flagRow
	for _, row := range rows {
		if row.Container == container {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

// findFlag returns the row named qualifiedName.
func findFlag(rows []flagRow, qualifiedName string) (flagRow, bool) {
	for _, row := range rows {
		if row.qualifiedName() == qualifiedName {
			return row, true
		}
	}
	return flagRow{}, false
}
