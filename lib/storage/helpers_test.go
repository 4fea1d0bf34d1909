// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/aconfigd/lib/storagefile"
)

const (
	testPackage1 = "com.android.aconfig.storage.test_1"
	testPackage2 = "com.android.aconfig.storage.test_2"
	testPackage4 = "com.android.aconfig.storage.test_4"
)

// mockDeclarations lays out eight flags. Global indexes follow from
// sorting: test_1 holds 0-2, test_2 holds 3-5, test_4 holds 6-7.
func mockDeclarations() []storagefile.Declaration {
	return []storagefile.Declaration{
		{Package: testPackage1, Name: "disabled_rw", Type: storagefile.ReadWriteBoolean},
		{Package: testPackage1, Name: "enabled_ro", Type: storagefile.ReadOnlyBoolean, Value: true},
		{Package: testPackage1, Name: "enabled_rw", Type: storagefile.ReadWriteBoolean, Value: true},
		{Package: testPackage2, Name: "disabled_rw", Type: storagefile.ReadWriteBoolean},
		{Package: testPackage2, Name: "enabled_fixed_ro", Type: storagefile.FixedReadOnlyBoolean, Value: true},
		{Package: testPackage2, Name: "enabled_ro", Type: storagefile.ReadOnlyBoolean, Value: true},
		{Package: testPackage4, Name: "enabled_fixed_ro", Type: storagefile.FixedReadOnlyBoolean, Value: true},
		{Package: testPackage4, Name: "enabled_rw", Type: storagefile.ReadWriteBoolean, Value: true},
	}
}

type testContainer struct {
	name       string
	packageMap string
	flagMap    string
	flagVal    string
	flagInfo   string
}

// writeTestContainer builds storage files for declarations into a fresh
// directory.
func writeTestContainer(t *testing.T, name string, declarations []storagefile.Declaration) testContainer {
	t.Helper()
	dir := t.TempDir()
	rewriteTestContainer(t, dir, name, declarations)
	return testContainer{
		name:       name,
		packageMap: filepath.Join(dir, storagefile.PackageMapName),
		flagMap:    filepath.Join(dir, storagefile.FlagMapName),
		flagVal:    filepath.Join(dir, storagefile.FlagValName),
		flagInfo:   filepath.Join(dir, storagefile.FlagInfoName),
	}
}

func rewriteTestContainer(t *testing.T, dir, name string, declarations []storagefile.Declaration) {
	t.Helper()
	files, err := storagefile.Build(name, storagefile.Version, declarations)
	if err != nil {
		t.Fatalf("building storage files: %v", err)
	}
	if err := files.WriteDir(dir); err != nil {
		t.Fatalf("writing storage files: %v", err)
	}
}

func newTestRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{MapsDir, FlagsDir, BootDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestManager registers a mockup container with a fresh manager.
func newTestManager(t *testing.T) (*Manager, testContainer) {
	t.Helper()
	container := writeTestContainer(t, "mockup", mockDeclarations())
	manager := NewManager(newTestRoot(t), testLogger())
	t.Cleanup(func() { manager.Close() })
	if err := manager.AddOrUpdateContainerStorageFiles(container.name,
		container.packageMap, container.flagMap, container.flagVal, container.flagInfo); err != nil {
		t.Fatalf("AddOrUpdateContainerStorageFiles: %v", err)
	}
	return manager, container
}

func sameContent(t *testing.T, first, second string) bool {
	t.Helper()
	a, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(second)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.Equal(a, b)
}

func requireSnapshot(t *testing.T, manager *Manager, packageName, flagName string) FlagSnapshot {
	t.Helper()
	snapshot, err := manager.FlagSnapshot(packageName, flagName)
	if err != nil {
		t.Fatalf("FlagSnapshot(%s.%s): %v", packageName, flagName, err)
	}
	if snapshot == nil {
		t.Fatalf("FlagSnapshot(%s.%s) = nil", packageName, flagName)
	}
	return *snapshot
}
