// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/bureau-foundation/aconfigd/lib/fileutil"
	"github.com/bureau-foundation/aconfigd/lib/flagreader"
	"github.com/bureau-foundation/aconfigd/lib/storagefile"
	"github.com/bureau-foundation/aconfigd/lib/version"
)

const testDeclarations = `{
    // Built by the create tests.
    "container": "system",
    "flags": [
        {"package": "com.android.aconfig.test", "name": "enabled_rw", "permission": "read-write", "state": "enabled"},
        {"package": "com.android.aconfig.test", "name": "enabled_ro", "permission": "read-only", "state": "enabled"},
        {"package": "com.android.aconfig.other", "name": "disabled_fixed", "permission": "fixed-read-only", "state": "disabled"},
    ],
}`

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := rootCommand(&stdout, &stderr).Execute(args)
	return stdout.String(), stderr.String(), err
}

// create builds storage files from testDeclarations into a fresh
// directory and returns it.
func create(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	declarationsPath := filepath.Join(dir, "system.jsonc")
	if err := os.WriteFile(declarationsPath, []byte(testDeclarations), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "etc", "aconfig")
	stdout, _, err := run(t, "create", "--declarations", declarationsPath, "--out", outDir)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(stdout, "container system (3 flags)") {
		t.Errorf("create output = %q", stdout)
	}
	return outDir
}

func TestVersion(t *testing.T) {
	stdout, _, err := run(t, "--version")
	if err != nil {
		t.Fatalf("--version: %v", err)
	}
	if strings.TrimSpace(stdout) != version.Binary("aconfig-storage") {
		t.Errorf("--version = %q", stdout)
	}
}

func TestCreateReadableByFlagReader(t *testing.T) {
	outDir := create(t)

	for _, name := range []string{storagefile.PackageMapName, storagefile.FlagMapName, storagefile.FlagValName, storagefile.FlagInfoName} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	// The reader expects the daemon's layout: maps/<container>.* and
	// boot/<container>.val.
	root := t.TempDir()
	mapsDir := filepath.Join(root, "maps")
	bootDir := filepath.Join(root, "boot")
	for _, dir := range []string{mapsDir, bootDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	copyFile(t, filepath.Join(outDir, storagefile.PackageMapName), filepath.Join(mapsDir, "system.package.map"))
	copyFile(t, filepath.Join(outDir, storagefile.FlagMapName), filepath.Join(mapsDir, "system.flag.map"))
	copyFile(t, filepath.Join(outDir, storagefile.FlagValName), filepath.Join(bootDir, "system.val"))

	pkg, err := flagreader.Open(mapsDir, bootDir, "com.android.aconfig.test")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pkg.Close()
	if !pkg.BooleanFlagValue("enabled_rw", false) {
		t.Error("enabled_rw = false, want true")
	}
	if !pkg.BooleanFlagValue("enabled_ro", false) {
		t.Error("enabled_ro = false, want true")
	}
}

func copyFile(t *testing.T, from, to string) {
	t.Helper()
	data, err := os.ReadFile(from)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(to, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCreateReportsValidationIssues(t *testing.T) {
	dir := t.TempDir()
	declarationsPath := filepath.Join(dir, "bad.jsonc")
	content := `{"container": "system", "flags": [
		{"package": "com.android.aconfig.test", "name": "Bad-Name", "permission": "read-write", "state": "enabled"},
		{"package": "com.android.aconfig.test", "name": "ok", "permission": "sometimes", "state": "enabled"}
	]}`
	if err := os.WriteFile(declarationsPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")
	_, _, err := run(t, "create", "--declarations", declarationsPath, "--out", outDir)
	if err == nil {
		t.Fatal("create accepted invalid declarations")
	}
	for _, want := range []string{"2 issue(s)", "flags[0]", "flags[1]"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
	if _, statErr := os.Stat(outDir); !os.IsNotExist(statErr) {
		t.Errorf("output directory created despite validation failure: %v", statErr)
	}
}

func TestCreateRequiresFlags(t *testing.T) {
	_, _, err := run(t, "create")
	if err == nil {
		t.Fatal("create without flags succeeded")
	}
	for _, want := range []string{"--declarations is required", "--out is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestDumpText(t *testing.T) {
	outDir := create(t)

	stdout, _, err := run(t, "dump", filepath.Join(outDir, storagefile.FlagMapName))
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	for _, want := range []string{
		"container: system",
		"file_type: flag_map",
		"num_entries: 3",
		"PACKAGE_ID",
		"disabled_fixed",
		"fixed_read_only_boolean",
		"read_write_boolean",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("dump output missing %q:\n%s", want, stdout)
		}
	}
}

func TestDumpPackageMapText(t *testing.T) {
	outDir := create(t)

	stdout, _, err := run(t, "dump", filepath.Join(outDir, storagefile.PackageMapName))
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	fingerprint := fmt.Sprintf("%016x", storagefile.PackageFingerprint([]string{"disabled_fixed"}))
	for _, want := range []string{"file_type: package_map", "FINGERPRINT", "com.android.aconfig.other", fingerprint} {
		if !strings.Contains(stdout, want) {
			t.Errorf("dump output missing %q:\n%s", want, stdout)
		}
	}
}

func TestDumpJSON(t *testing.T) {
	outDir := create(t)

	tests := []struct {
		file  string
		check func(t *testing.T, dump fileDump)
	}{
		{storagefile.PackageMapName, func(t *testing.T, dump fileDump) {
			want := []packageEntry{
				{
					Name:              "com.android.aconfig.other",
					PackageID:         0,
					BooleanStartIndex: 0,
					Fingerprint:       storagefile.PackageFingerprint([]string{"disabled_fixed"}),
				},
				{
					Name:              "com.android.aconfig.test",
					PackageID:         1,
					BooleanStartIndex: 1,
					Fingerprint:       storagefile.PackageFingerprint([]string{"enabled_ro", "enabled_rw"}),
				},
			}
			if !reflect.DeepEqual(dump.Packages, want) {
				t.Errorf("packages = %+v, want %+v", dump.Packages, want)
			}
		}},
		{storagefile.FlagValName, func(t *testing.T, dump fileDump) {
			want := []valueEntry{{0, false}, {1, true}, {2, true}}
			if !reflect.DeepEqual(dump.Values, want) {
				t.Errorf("values = %+v, want %+v", dump.Values, want)
			}
		}},
		{storagefile.FlagInfoName, func(t *testing.T, dump fileDump) {
			// Sorted by name within the package: enabled_ro then enabled_rw.
			want := []infoEntry{{Index: 0}, {Index: 1}, {Index: 2, IsReadWrite: true}}
			if !reflect.DeepEqual(dump.Infos, want) {
				t.Errorf("infos = %+v, want %+v", dump.Infos, want)
			}
		}},
	}
	for _, test := range tests {
		t.Run(test.file, func(t *testing.T) {
			stdout, _, err := run(t, "dump", "--json", filepath.Join(outDir, test.file))
			if err != nil {
				t.Fatalf("dump --json: %v", err)
			}
			var dump fileDump
			if err := json.Unmarshal([]byte(stdout), &dump); err != nil {
				t.Fatalf("decoding %q: %v", stdout, err)
			}
			if dump.Container != "system" || dump.Version != storagefile.Version || dump.NumEntries == 0 {
				t.Errorf("header = %+v", dump)
			}
			test.check(t, dump)
		})
	}
}

func TestDumpRejectsCorruptFile(t *testing.T) {
	outDir := create(t)
	path := filepath.Join(outDir, storagefile.FlagMapName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	truncated := filepath.Join(t.TempDir(), "truncated.map")
	if err := os.WriteFile(truncated, data[:len(data)-4], 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err = run(t, "dump", truncated)
	if err == nil {
		t.Fatal("dump accepted a truncated file")
	}
	if !strings.Contains(err.Error(), "invalid storage file") {
		t.Errorf("error = %v, want invalid storage file", err)
	}
}

func TestDumpArgs(t *testing.T) {
	_, _, err := run(t, "dump")
	if err == nil || !strings.Contains(err.Error(), "expected 1 argument(s), got 0") {
		t.Errorf("dump without a file: %v", err)
	}
}

func TestDumpCBOR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ota.cbor")
	staged := map[string]any{
		"build_id": "AP1A.240101",
		"flags":    map[string]string{"com.android.aconfig.test.enabled_rw": "false"},
	}
	if err := fileutil.WriteCBOR(path, staged); err != nil {
		t.Fatalf("WriteCBOR: %v", err)
	}

	stdout, _, err := run(t, "dump", path)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(stdout, `"build_id"`) || !strings.Contains(stdout, `"AP1A.240101"`) {
		t.Errorf("diagnostic output = %q", stdout)
	}

	stdout, _, err = run(t, "dump", "--json", path)
	if err != nil {
		t.Fatalf("dump --json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(stdout), &decoded); err != nil {
		t.Fatalf("decoding %q: %v", stdout, err)
	}
	if decoded["build_id"] != "AP1A.240101" {
		t.Errorf("build_id = %v", decoded["build_id"])
	}
}
