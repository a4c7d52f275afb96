package atomicfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteCreatesFileWithContent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sub", "file.json")

	if err := Write(target, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("unexpected content: %s", data)
	}
}

func TestWriteReplacesExistingContent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.json")

	if err := Write(target, []byte("first"), 0o644); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := Write(target, []byte("second"), 0o644); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("expected replaced content, got %s", data)
	}
}

func TestWriteLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.json")

	if err := Write(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "file.json" {
		t.Fatalf("expected only file.json in directory, found %v", entries)
	}
}
