// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"fmt"
	"strings"
)

// SplitQualifiedName splits "package.flag" at its last dot. Package
// names contain dots; flag names do not.
func SplitQualifiedName(qualifiedName string) (packageName, flagName string, err error) {
	index := strings.LastIndexByte(qualifiedName, '.')
	if index <= 0 || index == len(qualifiedName)-1 {
		return "", "", fmt.Errorf("invalid flag name %q: want <package>.<flag>", qualifiedName)
	}
	return qualifiedName[:index], qualifiedName[index+1:], nil
}

// QualifiedName joins a package and flag name.
func QualifiedName(packageName, flagName string) string {
	return packageName + "." + flagName
}
