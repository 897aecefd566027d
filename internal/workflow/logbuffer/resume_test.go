package logbuffer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTailUnseenLogs_ReturnsNewFileOnFirstCall(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "task_001_a.log"), []byte("line1\nline2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changed, err := TailUnseenLogs(dir, 15)
	if err != nil {
		t.Fatal(err)
	}
	lines, ok := changed["task_001_a.log"]
	if !ok {
		t.Fatal("expected task_001_a.log to be reported as changed on first call")
	}
	if len(lines) != 2 || lines[0] != "line1" || lines[1] != "line2" {
		t.Fatalf("unexpected tail: %v", lines)
	}
}

func TestTailUnseenLogs_SkipsUnchangedOnSecondCall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task_001_a.log")
	if err := os.WriteFile(path, []byte("line1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := TailUnseenLogs(dir, 15); err != nil {
		t.Fatal(err)
	}
	changed, err := TailUnseenLogs(dir, 15)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := changed["task_001_a.log"]; ok {
		t.Fatal("expected unchanged log to be skipped on second call")
	}
}

func TestTailUnseenLogs_ReportsFileAgainAfterItGrows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task_001_a.log")
	if err := os.WriteFile(path, []byte("line1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := TailUnseenLogs(dir, 15); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("line1\nline2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := TailUnseenLogs(dir, 15)
	if err != nil {
		t.Fatal(err)
	}
	lines, ok := changed["task_001_a.log"]
	if !ok {
		t.Fatal("expected grown log to be reported as changed")
	}
	if len(lines) != 2 {
		t.Fatalf("unexpected tail: %v", lines)
	}
}

func TestTailUnseenLogs_IgnoresNonLogFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "run-config.yaml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := TailUnseenLogs(dir, 15)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 0 {
		t.Fatalf("expected non-.log files to be ignored, got %v", changed)
	}
}
