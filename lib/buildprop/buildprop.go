// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildprop

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Properties maps property names to values.
type Properties map[string]string

// Parse reads properties from r. Lines without '=' are rejected with
// their line number.
func Parse(r io.Reader) (Properties, error) {
	properties := make(Properties)
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "import ") {
			continue
		}
		name, value, found := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("line %d: expected name=value, got %q", lineNumber, line)
		}
		properties[name] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return properties, nil
}

// ReadFile parses the property file at path.
func ReadFile(path string) (Properties, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	properties, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return properties, nil
}

// Lookup returns the named property from the file at path. The
// boolean is false when the file does not assign it.
func Lookup(path, name string) (string, bool, error) {
	properties, err := ReadFile(path)
	if err != nil {
		return "", false, err
	}
	value, ok := properties[name]
	return value, ok, nil
}
