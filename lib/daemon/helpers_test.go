// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/aconfigd/lib/config"
	"github.com/bureau-foundation/aconfigd/lib/storage"
	"github.com/bureau-foundation/aconfigd/lib/storagefile"
	"github.com/bureau-foundation/aconfigd/lib/testutil"
)

const (
	testPackage     = "com.android.aconfig.test"
	testFingerprint = "google/mockup/mockup:15/AP4A.250105.002/1:user/release-keys"
)

func testDeclarations() []storagefile.Declaration {
	return []storagefile.Declaration{
		{Package: testPackage, Name: "disabled_rw", Type: storagefile.ReadWriteBoolean},
		{Package: testPackage, Name: "enabled_ro", Type: storagefile.ReadOnlyBoolean, Value: true},
		{Package: testPackage, Name: "enabled_rw", Type: storagefile.ReadWriteBoolean, Value: true},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testConfig points every path of a config at fresh temporary
// directories. The apex directories do not exist until a test creates
// them.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	socketDir := testutil.SocketDir(t)

	cfg := config.Default()
	cfg.Storage.Root = filepath.Join(base, "metadata", "aconfig")
	cfg.Storage.Records = filepath.Join(cfg.Storage.Root, "storage_records.cbor")
	cfg.Containers.PartitionsRoot = filepath.Join(base, "partitions")
	cfg.Containers.ApexDir = filepath.Join(base, "apex")
	cfg.Containers.BootstrapApexDir = filepath.Join(base, "bootstrap-apex")
	cfg.Socket.Name = testutil.UniqueID("aconfigd_test")
	cfg.Socket.Path = filepath.Join(socketDir, "aconfigd.sock")
	cfg.Build.PropFile = filepath.Join(base, "build.prop")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

func writeBuildProp(t *testing.T, cfg *config.Config, fingerprint string) {
	t.Helper()
	content := "# test build\nro.build.id=AP4A\n" + cfg.Build.FingerprintProperty + "=" + fingerprint + "\n"
	if err := os.WriteFile(cfg.Build.PropFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// writeStorageFiles builds the default storage files of container into
// dir.
func writeStorageFiles(t *testing.T, dir, container string, declarations []storagefile.Declaration) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	files, err := storagefile.Build(container, storagefile.Version, declarations)
	if err != nil {
		t.Fatalf("building storage files: %v", err)
	}
	if err := files.WriteDir(dir); err != nil {
		t.Fatalf("writing storage files: %v", err)
	}
}

func readRecords(t *testing.T, cfg *config.Config) []string {
	t.Helper()
	records, err := storage.ReadPersistRecords(cfg.Storage.Records)
	if err != nil {
		t.Fatalf("reading records: %v", err)
	}
	var containers []string
	for _, record := range records.Records {
		containers = append(containers, record.Container)
	}
	return containers
}

func bootFile(cfg *config.Config, name string) string {
	return filepath.Join(cfg.Storage.Root, storage.BootDir, name)
}

// reopen starts a fresh daemon from the records file, as the next boot
// stage would.
func reopen(t *testing.T, cfg *config.Config) *Daemon {
	t.Helper()
	d, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.InitializeFromStorageRecord(); err != nil {
		t.Fatalf("InitializeFromStorageRecord: %v", err)
	}
	return d
}

func requireSameStrings(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// startSocket runs StartSocket until the test ends.
func startSocket(t *testing.T, cfg *config.Config) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartSocket(ctx, cfg, testLogger()) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "StartSocket did not return"); err != nil {
			t.Errorf("StartSocket: %v", err)
		}
	})
	testutil.WaitForSocket(t, cfg.Socket.Path)
}
