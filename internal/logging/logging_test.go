package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewDisabledReturnsUsableLogger(t *testing.T) {
	logger := New(t.TempDir(), Options{Enabled: false})
	if logger == nil {
		t.Fatal("expected a non-nil logger")
	}
	logger.Info("hello")
}

func TestNewEnabledWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	logger := New(dir, Options{Enabled: true, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	logger.Info("hello", "k", "v")

	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist after logging, got %v", path, err)
	}
}

func TestDefaultOptionsDisablesFileLogging(t *testing.T) {
	if DefaultOptions().Enabled {
		t.Fatal("expected DefaultOptions to leave file logging disabled")
	}
}
