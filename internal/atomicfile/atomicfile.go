// Package atomicfile implements the Atomic Writer: durable replace of a
// target file by write-temp, fsync, rename, fsync(dir). Grounded on the
// teacher's internal/daemon/registry.go writeEntriesLocked, generalized to
// arbitrary byte content instead of a single JSON shape.
package atomicfile

import (
	"os"
	"path/filepath"

	"github.com/jit-dev/jit/internal/errkind"
)

// Write durably replaces target with data. Failure after the rename leaves
// the new content in place; failure before it leaves the prior content
// untouched — callers never observe a torn file.
func Write(target string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errkind.Wrap(errkind.IO, err, "create parent directory for %s", target)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return errkind.Wrap(errkind.IO, err, "create temp file for %s", target)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errkind.Wrap(errkind.IO, err, "write temp file for %s", target)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errkind.Wrap(errkind.IO, err, "fsync temp file for %s", target)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errkind.Wrap(errkind.IO, err, "close temp file for %s", target)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return errkind.Wrap(errkind.IO, err, "chmod temp file for %s", target)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return errkind.Wrap(errkind.IO, err, "rename temp file into place for %s", target)
	}

	if err := fsyncDir(dir); err != nil {
		return err
	}
	return nil
}

// fsyncDir fsyncs the parent directory so the rename itself is durable.
// Directories can't be opened for sync on Windows; skip there rather than
// fail the whole write.
func fsyncDir(dir string) error {
	if skipDirSync {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return errkind.Wrap(errkind.IO, err, "open directory %s for fsync", dir)
	}
	defer func() { _ = d.Close() }()
	if err := d.Sync(); err != nil {
		return errkind.Wrap(errkind.IO, err, "fsync directory %s", dir)
	}
	return nil
}
