// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/aconfigd/lib/config"
	"github.com/bureau-foundation/aconfigd/lib/daemon"
	"github.com/bureau-foundation/aconfigd/lib/fileutil"
	"github.com/bureau-foundation/aconfigd/lib/storage"
	"github.com/bureau-foundation/aconfigd/lib/storagefile"
	"github.com/bureau-foundation/aconfigd/lib/testutil"
	"github.com/bureau-foundation/aconfigd/lib/version"
)

const testPackage = "com.android.aconfig.test"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testDevice struct {
	cfg *config.Config
	// sockets lists the running daemon's socket and one that nothing
	// listens on, like a device without a mainline daemon.
	sockets []string
}

// startDevice initializes the system partition storage and serves it.
func startDevice(t *testing.T) testDevice {
	t.Helper()
	base := t.TempDir()
	socketDir := testutil.SocketDir(t)

	cfg := config.Default()
	cfg.Storage.Root = filepath.Join(base, "metadata", "aconfig")
	cfg.Storage.Records = filepath.Join(cfg.Storage.Root, "storage_records.cbor")
	cfg.Containers.Platform = []string{"system"}
	cfg.Containers.PartitionsRoot = filepath.Join(base, "partitions")
	cfg.Containers.ApexDir = filepath.Join(base, "apex")
	cfg.Containers.BootstrapApexDir = filepath.Join(base, "bootstrap-apex")
	cfg.Socket.Name = testutil.UniqueID("aconfigd_aflags")
	cfg.Socket.Path = filepath.Join(socketDir, "system.sock")
	cfg.Build.PropFile = filepath.Join(base, "build.prop")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	files, err := storagefile.Build("system", storagefile.Version, []storagefile.Declaration{
		{Package: testPackage, Name: "disabled_rw", Type: storagefile.ReadWriteBoolean},
		{Package: testPackage, Name: "enabled_ro", Type: storagefile.ReadOnlyBoolean, Value: true},
		{Package: testPackage, Name: "enabled_rw", Type: storagefile.ReadWriteBoolean, Value: true},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	dir := filepath.Join(cfg.Containers.PartitionsRoot, "system", "etc", "aconfig")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := files.WriteDir(dir); err != nil {
		t.Fatal(err)
	}
	if err := daemon.PlatformInit(cfg, discardLogger()); err != nil {
		t.Fatalf("PlatformInit: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- daemon.StartSocket(ctx, cfg, discardLogger()) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "daemon did not stop"); err != nil {
			t.Errorf("StartSocket: %v", err)
		}
	})
	testutil.WaitForSocket(t, cfg.Socket.Path)

	return testDevice{
		cfg:     cfg,
		sockets: []string{cfg.Socket.Path, filepath.Join(socketDir, "mainline.sock")},
	}
}

// run executes aflags against the device and returns stdout.
func (d testDevice) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := []string{"--socket", strings.Join(d.sockets, ",")}
	err := rootCommand(context.Background(), &stdout, &stderr, false, discardLogger()).Execute(append(full, args...))
	return stdout.String(), err
}

func (d testDevice) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	output, err := d.run(t, args...)
	if err != nil {
		t.Fatalf("aflags %s: %v", strings.Join(args, " "), err)
	}
	return output
}

// listRows returns the list output split into fields per line.
func (d testDevice) listRows(t *testing.T) map[string][]string {
	t.Helper()
	rows := make(map[string][]string)
	for _, line := range strings.Split(strings.TrimSpace(d.mustRun(t, "list")), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 6 {
			t.Fatalf("list row %q has %d fields, want 6", line, len(fields))
		}
		rows[fields[0]] = fields[1:]
	}
	return rows
}

func requireRow(t *testing.T, rows map[string][]string, name string, want ...string) {
	t.Helper()
	got, ok := rows[testPackage+"."+name]
	if !ok {
		t.Fatalf("no row for %s in %v", name, rows)
	}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestList(t *testing.T) {
	device := startDevice(t)

	rows := device.listRows(t)
	if len(rows) != 3 {
		t.Fatalf("listed %d flags, want 3", len(rows))
	}
	requireRow(t, rows, "disabled_rw", "disabled", "-", "default", "read-write", "system")
	requireRow(t, rows, "enabled_ro", "enabled", "-", "default", "read-only", "system")
	requireRow(t, rows, "enabled_rw", "enabled", "-", "default", "read-write", "system")

	output := device.mustRun(t, "list", "--container", "system", "--json")
	var listed []map[string]any
	if err := json.Unmarshal([]byte(output), &listed); err != nil {
		t.Fatalf("list --json is not JSON: %v\n%s", err, output)
	}
	if len(listed) != 3 || listed[0]["name"] != "disabled_rw" || listed[0]["permission"] != "read-write" {
		t.Errorf("list --json = %v", listed)
	}

	_, err := device.run(t, "list", "--container", "vendor")
	if err == nil || err.Error() != "could not list flags: container 'vendor' not found" {
		t.Errorf("unknown container: err = %v", err)
	}
}

func TestListWithoutDaemon(t *testing.T) {
	dir := testutil.SocketDir(t)
	device := testDevice{sockets: []string{filepath.Join(dir, "a.sock"), filepath.Join(dir, "b.sock")}}
	_, err := device.run(t, "list")
	if err == nil || !strings.HasPrefix(err.Error(), "could not list flags:") {
		t.Errorf("err = %v, want list failure", err)
	}
}

func TestEnableDisableUnset(t *testing.T) {
	device := startDevice(t)

	device.mustRun(t, "enable", testPackage+".disabled_rw")
	rows := device.listRows(t)
	requireRow(t, rows, "disabled_rw", "disabled", "(->enabled)", "default", "read-write", "system")

	device.mustRun(t, "disable", "--immediate", testPackage+".enabled_rw")
	rows = device.listRows(t)
	requireRow(t, rows, "enabled_rw", "disabled", "-", "local", "read-write", "system")

	device.mustRun(t, "unset", testPackage+".enabled_rw")
	rows = device.listRows(t)
	requireRow(t, rows, "enabled_rw", "disabled", "(->enabled)", "local", "read-write", "system")

	device.mustRun(t, "unset", "-i", testPackage+".disabled_rw")
	rows = device.listRows(t)
	requireRow(t, rows, "disabled_rw", "disabled", "-", "default", "read-write", "system")
}

func TestSetFlagRefusals(t *testing.T) {
	device := startDevice(t)

	_, err := device.run(t, "enable", testPackage+".enabled_ro")
	want := "could not write flag '" + testPackage + ".enabled_ro', it is read-only for the current release configuration."
	if err == nil || err.Error() != want {
		t.Errorf("read-only: err = %v, want %q", err, want)
	}

	_, err = device.run(t, "disable", testPackage+".missing")
	want = "no aconfig flag '" + testPackage + ".missing'. Does the flag have an .aconfig definition?"
	if err == nil || err.Error() != want {
		t.Errorf("unknown flag: err = %v, want %q", err, want)
	}

	_, err = device.run(t, "unset", "noperiod")
	if err == nil {
		t.Error("unset of a name without a package should fail")
	}

	_, err = device.run(t, "enable")
	if err == nil || !strings.Contains(err.Error(), "expected 1 argument(s), got 0") {
		t.Errorf("missing argument: err = %v", err)
	}
}

func TestQuery(t *testing.T) {
	device := startDevice(t)
	device.mustRun(t, "enable", testPackage+".disabled_rw")

	output := device.mustRun(t, "query", testPackage+".disabled_rw")
	for _, want := range []string{
		"flag:                    " + testPackage + ".disabled_rw\n",
		"boot_value:              false\n",
		"local_value:             true\n",
		"has_local_override:      true\n",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("query output missing %q:\n%s", want, output)
		}
	}

	output = device.mustRun(t, "query", "--json", testPackage+".enabled_ro")
	var snapshot storage.FlagSnapshot
	if err := json.Unmarshal([]byte(output), &snapshot); err != nil {
		t.Fatalf("query --json: %v", err)
	}
	if snapshot.BootValue != "true" || snapshot.IsReadWrite || snapshot.Container != "system" {
		t.Errorf("snapshot = %+v", snapshot)
	}

	if _, err := device.run(t, "query", testPackage+".missing"); err == nil {
		t.Error("query of an unknown flag should fail")
	}
}

func TestReset(t *testing.T) {
	device := startDevice(t)
	device.mustRun(t, "enable", "-i", testPackage+".disabled_rw")
	requireRow(t, device.listRows(t), "disabled_rw", "enabled", "-", "local", "read-write", "system")

	device.mustRun(t, "reset")
	requireRow(t, device.listRows(t), "disabled_rw", "disabled", "-", "default", "read-write", "system")
}

func TestStageOTA(t *testing.T) {
	device := startDevice(t)
	path := filepath.Join(t.TempDir(), "ota.jsonc")
	content := `{
        // next build
        "build_id": "mockup:16/BP1A/2:user/release-keys",
        "overrides": [{"package": "` + testPackage + `", "flag": "disabled_rw", "value": "true"}],
    }`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	device.mustRun(t, "stage-ota", "--file", path)

	var staged storage.OTAStaging
	if err := fileutil.ReadCBOR(filepath.Join(device.cfg.Storage.Root, storage.OTAStagingFile), &staged); err != nil {
		t.Fatalf("reading staging file: %v", err)
	}
	if staged.BuildID != "mockup:16/BP1A/2:user/release-keys" || len(staged.Overrides) != 1 || staged.Overrides[0].Value != "true" {
		t.Errorf("staged = %+v", staged)
	}

	if _, err := device.run(t, "stage-ota"); err == nil || err.Error() != "--file is required" {
		t.Errorf("missing --file: err = %v", err)
	}
}

func TestVersionAndBacking(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := rootCommand(context.Background(), &stdout, &stderr, false, discardLogger()).Execute([]string{"--version"}); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout.String()) != version.Binary("aflags") {
		t.Errorf("version = %q", stdout.String())
	}

	stdout.Reset()
	if err := rootCommand(context.Background(), &stdout, &stderr, false, discardLogger()).Execute([]string{"which-backing"}); err != nil {
		t.Fatal(err)
	}
	if stdout.String() != "aconfig_storage\n" {
		t.Errorf("which-backing = %q", stdout.String())
	}
}
