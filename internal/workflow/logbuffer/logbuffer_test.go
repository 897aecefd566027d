package logbuffer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteRaw_AndGetTail(t *testing.T) {
	dir := t.TempDir()
	b := New(filepath.Join(dir, "task.log"), 3)
	for _, l := range []string{"a", "b", "c", "d"} {
		if err := b.WriteRaw(l); err != nil {
			t.Fatal(err)
		}
	}
	tail := b.GetTail(2)
	if len(tail) != 2 || tail[0] != "c" || tail[1] != "d" {
		t.Fatalf("got %v", tail)
	}
	if b.LineCount() != 4 {
		t.Fatalf("line count = %d, want 4", b.LineCount())
	}
}

func TestGetTail_FewerLinesThanRequested(t *testing.T) {
	dir := t.TempDir()
	b := New(filepath.Join(dir, "task.log"), 100)
	b.WriteRaw("only")
	tail := b.GetTail(15)
	if len(tail) != 1 || tail[0] != "only" {
		t.Fatalf("got %v", tail)
	}
}

func TestWrite_TimestampsAndFileBacking(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "task.log")
	b := New(path, 10)
	if err := b.Write("hello"); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got == "hello\n" || len(got) <= len("hello\n") {
		t.Fatalf("expected timestamp prefix in file content, got %q", got)
	}
}

func TestClose_Idempotent(t *testing.T) {
	dir := t.TempDir()
	b := New(filepath.Join(dir, "task.log"), 10)
	b.WriteRaw("x")
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestContentHash_DetectsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task.log")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	h1, err := ContentHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if !UnchangedSince(path, h1) {
		t.Fatal("expected unchanged")
	}
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if UnchangedSince(path, h1) {
		t.Fatal("expected changed")
	}
}
