//go:build windows

package atomicfile

// Windows does not allow opening a directory handle for Sync; NTFS's own
// rename semantics are already crash-atomic without it.
const skipDirSync = true
