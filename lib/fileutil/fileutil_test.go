// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fileutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	if err := WriteAtomic(path, []byte("first"), 0o600); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if err := WriteAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("mode = %o, want 644", info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the target", len(entries))
	}
}

func TestWriteAtomicMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "state")
	if err := WriteAtomic(path, []byte("x"), 0o644); err == nil {
		t.Fatal("WriteAtomic into a missing directory succeeded")
	}
}

func TestCopyFileKeepsOpenHandlesValid(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	held, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Close()

	if err := CopyFile(src, dst, 0o444); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}

	buffer := make([]byte, 3)
	if _, err := held.Read(buffer); err != nil {
		t.Fatal(err)
	}
	if string(buffer) != "old" {
		t.Errorf("held handle reads %q, want old", buffer)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "new" {
		t.Errorf("dst = %q, want new", data)
	}
	info, _ := os.Stat(dst)
	if info.Mode().Perm() != 0o444 {
		t.Errorf("mode = %o, want 444", info.Mode().Perm())
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone")
	if err := Remove(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Remove(missing) = %v, want ErrNotExist", err)
	}
	if err := RemoveIfExists(path); err != nil {
		t.Errorf("RemoveIfExists(missing) = %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Remove(path); err != nil {
		t.Errorf("Remove: %v", err)
	}
	if Exists(path) {
		t.Error("file still exists after Remove")
	}
}

func TestSetPermission(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flag.val")
	if err := os.WriteFile(path, []byte{0}, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := SetPermission(path, 0o644); err != nil {
		t.Fatalf("SetPermission: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("mode = %o, want 644", info.Mode().Perm())
	}

	err = SetPermission(filepath.Join(t.TempDir(), "absent"), 0o644)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("SetPermission(missing) = %v, want ErrNotExist", err)
	}
}

func TestCBORFiles(t *testing.T) {
	type record struct {
		Container string   `cbor:"container"`
		Flags     []string `cbor:"flags"`
	}
	path := filepath.Join(t.TempDir(), "records.cbor")

	var missing record
	if err := ReadCBOR(path, &missing); err != nil {
		t.Fatalf("ReadCBOR(missing): %v", err)
	}
	if missing.Container != "" {
		t.Errorf("missing file decoded to %+v", missing)
	}

	want := record{Container: "system", Flags: []string{"a.b", "c.d"}}
	if err := WriteCBOR(path, want); err != nil {
		t.Fatalf("WriteCBOR: %v", err)
	}
	var got record
	if err := ReadCBOR(path, &got); err != nil {
		t.Fatalf("ReadCBOR: %v", err)
	}
	if got.Container != want.Container || len(got.Flags) != 2 || got.Flags[1] != "c.d" {
		t.Errorf("ReadCBOR = %+v, want %+v", got, want)
	}

	if err := os.WriteFile(path, []byte{0xff, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ReadCBOR(path, &got); err == nil {
		t.Error("ReadCBOR of garbage succeeded")
	}
}

func TestDigest(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	os.WriteFile(a, []byte("package map"), 0o644)
	os.WriteFile(b, []byte("flag map"), 0o644)

	first, err := Digest(a, b)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(first))
	}
	again, _ := Digest(a, b)
	if first != again {
		t.Error("Digest is not stable")
	}
	swapped, _ := Digest(b, a)
	if swapped == first {
		t.Error("Digest ignores file order")
	}

	os.WriteFile(b, []byte("flag map v2"), 0o644)
	changed, _ := Digest(a, b)
	if changed == first {
		t.Error("Digest did not change with content")
	}

	if _, err := Digest(filepath.Join(dir, "missing")); err == nil {
		t.Error("Digest of missing file succeeded")
	}
}
