// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package flagdecl

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/aconfigd/lib/storage"
)

// ParseOTA parses a JSONC OTA staging file:
//
//	{"build_id": "...", "overrides": [{"package": "...", "flag": "...", "value": "true"}]}
//
// Values must be "true" or "false"; whether the flags exist is only
// known to the daemon.
func ParseOTA(data []byte) (*storage.OTAStaging, error) {
	var staging storage.OTAStaging
	if err := json.Unmarshal(jsonc.ToJSON(data), &staging); err != nil {
		return nil, fmt.Errorf("parsing OTA staging file: %w", err)
	}

	var errs []error
	if staging.BuildID == "" {
		errs = append(errs, errors.New("build_id is required"))
	}
	for i, override := range staging.Overrides {
		if override.Package == "" || override.Flag == "" {
			errs = append(errs, fmt.Errorf("overrides[%d]: package and flag are required", i))
		}
		if override.Value != "true" && override.Value != "false" {
			errs = append(errs, fmt.Errorf("overrides[%d]: value %q must be \"true\" or \"false\"", i, override.Value))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &staging, nil
}

// ReadOTAFile reads and parses an OTA staging file.
func ReadOTAFile(path string) (*storage.OTAStaging, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	staging, err := ParseOTA(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return staging, nil
}
