// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package flagreader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/aconfigd/lib/storagefile"
)

// installContainer writes container's maps and boot values the way the
// daemon lays them out and returns the maps and boot directories.
func installContainer(t *testing.T, root, container string, declarations []storagefile.Declaration) (string, string) {
	t.Helper()
	files, err := storagefile.Build(container, storagefile.Version, declarations)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	mapsDir := filepath.Join(root, "maps")
	bootDir := filepath.Join(root, "boot")
	for _, dir := range []string{mapsDir, bootDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for path, data := range map[string][]byte{
		filepath.Join(mapsDir, container+".package.map"): files.PackageMap,
		filepath.Join(mapsDir, container+".flag.map"):    files.FlagMap,
		filepath.Join(bootDir, container+".val"):         files.FlagVal,
	} {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return mapsDir, bootDir
}

func setupStorage(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	installContainer(t, root, "system", []storagefile.Declaration{
		{Package: "com.android.aconfig.test", Name: "disabled_rw", Type: storagefile.ReadWriteBoolean},
		{Package: "com.android.aconfig.test", Name: "enabled_ro", Type: storagefile.ReadOnlyBoolean, Value: true},
		{Package: "com.android.aconfig.test", Name: "enabled_rw", Type: storagefile.ReadWriteBoolean, Value: true},
	})
	return installContainer(t, root, "vendor", []storagefile.Declaration{
		{Package: "com.android.vendor.test", Name: "enabled_fixed_ro", Type: storagefile.FixedReadOnlyBoolean, Value: true},
		{Package: "com.android.vendor.test", Name: "disabled_rw", Type: storagefile.ReadWriteBoolean},
	})
}

func TestOpenFindsContainer(t *testing.T) {
	mapsDir, bootDir := setupStorage(t)

	for _, test := range []struct {
		packageName string
		container   string
	}{
		{"com.android.aconfig.test", "system"},
		{"com.android.vendor.test", "vendor"},
	} {
		t.Run(test.packageName, func(t *testing.T) {
			pkg, err := Open(mapsDir, bootDir, test.packageName)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer pkg.Close()
			if pkg.Container() != test.container {
				t.Errorf("Container = %q, want %q", pkg.Container(), test.container)
			}
			if pkg.Name() != test.packageName {
				t.Errorf("Name = %q, want %q", pkg.Name(), test.packageName)
			}
		})
	}
}

func TestBooleanFlagValue(t *testing.T) {
	mapsDir, bootDir := setupStorage(t)
	pkg, err := Open(mapsDir, bootDir, "com.android.aconfig.test")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pkg.Close()

	tests := []struct {
		flag         string
		defaultValue bool
		want         bool
	}{
		{"disabled_rw", true, false},
		{"enabled_ro", false, true},
		{"enabled_rw", false, true},
		{"not_declared", true, true},
		{"not_declared", false, false},
	}
	for _, test := range tests {
		if got := pkg.BooleanFlagValue(test.flag, test.defaultValue); got != test.want {
			t.Errorf("BooleanFlagValue(%q, %v) = %v, want %v", test.flag, test.defaultValue, got, test.want)
		}
	}

	vendor, err := Open(mapsDir, bootDir, "com.android.vendor.test")
	if err != nil {
		t.Fatalf("Open vendor: %v", err)
	}
	defer vendor.Close()
	if !vendor.BooleanFlagValue("enabled_fixed_ro", false) {
		t.Error("vendor enabled_fixed_ro = false, want true")
	}
	if vendor.BooleanFlagValue("enabled_rw", true) != true {
		t.Error("a flag from another package should fall back to the default")
	}
}

func TestBooleanFlagValueReadsBootCopy(t *testing.T) {
	mapsDir, bootDir := setupStorage(t)
	bootVal := filepath.Join(bootDir, "system.val")
	mapping, err := storagefile.Map(bootVal, true)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	// disabled_rw is the first flag of the only system package.
	if err := storagefile.SetBoolValue(mapping.Bytes(), 0, true); err != nil {
		t.Fatalf("SetBoolValue: %v", err)
	}
	if err := mapping.Close(); err != nil {
		t.Fatal(err)
	}

	pkg, err := Open(mapsDir, bootDir, "com.android.aconfig.test")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pkg.Close()
	if !pkg.BooleanFlagValue("disabled_rw", false) {
		t.Error("disabled_rw should reflect the boot value true")
	}
	value, err := pkg.BooleanFlagValueAt(0)
	if err != nil || !value {
		t.Errorf("BooleanFlagValueAt(0) = %v, %v; want true", value, err)
	}
	if _, err := pkg.BooleanFlagValueAt(10); CodeOf(err) != CodeCannotReadStorageFile {
		t.Errorf("BooleanFlagValueAt(10) error code = %v, want %v", CodeOf(err), CodeCannotReadStorageFile)
	}
}

func TestOpenErrors(t *testing.T) {
	mapsDir, bootDir := setupStorage(t)

	_, err := Open(mapsDir, bootDir, "com.android.missing")
	if !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("missing package: err = %v, want package not found", err)
	}
	if err == nil || err.Error() != "package com.android.missing cannot be found on the device" {
		t.Errorf("missing package message = %v", err)
	}

	_, err = Open(filepath.Join(t.TempDir(), "absent"), bootDir, "com.android.aconfig.test")
	if CodeOf(err) != CodeStorageNotFound {
		t.Errorf("missing maps dir: code = %v, want %v", CodeOf(err), CodeStorageNotFound)
	}

	if err := os.Remove(filepath.Join(bootDir, "system.val")); err != nil {
		t.Fatal(err)
	}
	_, err = Open(mapsDir, bootDir, "com.android.aconfig.test")
	if CodeOf(err) != CodeCannotReadStorageFile {
		t.Errorf("missing boot values: code = %v, want %v (err %v)", CodeOf(err), CodeCannotReadStorageFile, err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing boot values should wrap ErrNotExist: %v", err)
	}
}

func TestOpenSkipsUnreadablePackageMaps(t *testing.T) {
	mapsDir, bootDir := setupStorage(t)
	if err := os.WriteFile(filepath.Join(mapsDir, "aaa.package.map"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	pkg, err := Open(mapsDir, bootDir, "com.android.vendor.test")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	pkg.Close()
}

func TestOpenInContainer(t *testing.T) {
	mapsDir, bootDir := setupStorage(t)

	fingerprint := storagefile.PackageFingerprint([]string{"enabled_fixed_ro", "disabled_rw"})
	pkg, err := OpenInContainer(mapsDir, bootDir, "vendor", "com.android.vendor.test", fingerprint)
	if err != nil {
		t.Fatalf("OpenInContainer: %v", err)
	}
	if pkg.BooleanFlagValue("disabled_rw", true) {
		t.Error("vendor disabled_rw = true, want false")
	}
	if pkg.Fingerprint() != fingerprint {
		t.Errorf("Fingerprint = %#x, want %#x", pkg.Fingerprint(), fingerprint)
	}
	// disabled_rw sorts first within the package.
	if value, err := pkg.BooleanFlagValueAt(1); err != nil || !value {
		t.Errorf("BooleanFlagValueAt(1) = %v, %v; want true", value, err)
	}
	pkg.Close()

	_, err = OpenInContainer(mapsDir, bootDir, "system", "com.android.vendor.test", fingerprint)
	if CodeOf(err) != CodePackageNotFound {
		t.Errorf("wrong container: code = %v, want %v", CodeOf(err), CodePackageNotFound)
	}
	_, err = OpenInContainer(mapsDir, bootDir, "product", "com.android.vendor.test", fingerprint)
	if CodeOf(err) != CodeContainerNotFound {
		t.Errorf("unknown container: code = %v, want %v", CodeOf(err), CodeContainerNotFound)
	}
}

func TestOpenInContainerFingerprintMismatch(t *testing.T) {
	mapsDir, bootDir := setupStorage(t)

	// Code generated before enabled_fixed_ro was added.
	stale := storagefile.PackageFingerprint([]string{"disabled_rw"})
	pkg, err := OpenInContainer(mapsDir, bootDir, "vendor", "com.android.vendor.test", stale)
	if err == nil {
		pkg.Close()
		t.Fatal("OpenInContainer accepted a stale fingerprint")
	}
	if CodeOf(err) != CodeFingerprintMismatch {
		t.Errorf("code = %v, want %v (err %v)", CodeOf(err), CodeFingerprintMismatch, err)
	}
	if !errors.Is(err, &Error{Code: CodeFingerprintMismatch}) {
		t.Errorf("errors.Is by code failed for %v", err)
	}
}

func TestCodeString(t *testing.T) {
	if CodePackageNotFound.String() != "package not found" {
		t.Errorf("String = %q", CodePackageNotFound.String())
	}
	if CodeFingerprintMismatch.String() != "fingerprint mismatch" {
		t.Errorf("String = %q", CodeFingerprintMismatch.String())
	}
	if Code(42).String() != "code(42)" {
		t.Errorf("String = %q", Code(42).String())
	}
	if CodeOf(errors.New("plain")) != CodeGeneric {
		t.Error("plain errors should be generic")
	}
}
