package leaseledger

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/jit-dev/jit/internal/errkind"
)

// IndexWatcher notifies a caller when claims.index.json changes on disk,
// so a long-lived agent can react to another process's acquire/release
// without polling (spec.md §5 "Parallelism arises from multiple
// independent processes"). Grounded on the teacher's
// cmd/bd/daemon_watcher.go FileWatcher, which watches a JSONL file's
// parent directory for create/write/rename events; narrowed here to the
// single file this package cares about and without its polling fallback,
// since an IndexWatcher is strictly advisory — callers that never start
// one still see up-to-date state on their next Ledger call.
type IndexWatcher struct {
	watcher *fsnotify.Watcher
	path    string
}

// WatchIndex starts watching claims.index.json for changes. Callers read
// Changed() for notifications and must call Close when done.
func (l *Ledger) WatchIndex() (*IndexWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, err, "create index watcher")
	}

	// Watch the parent directory rather than the file itself: the Atomic
	// Writer replaces claims.index.json by rename, which some platforms
	// surface as a removal of the watched inode rather than a write event.
	parent := l.sharedJIT
	if err := os.MkdirAll(parent, 0o750); err != nil {
		_ = w.Close()
		return nil, errkind.Wrap(errkind.IO, err, "create %s", parent)
	}
	if err := w.Add(parent); err != nil {
		_ = w.Close()
		return nil, errkind.Wrap(errkind.IO, err, "watch %s", parent)
	}

	return &IndexWatcher{watcher: w, path: l.indexPath()}, nil
}

// Changed returns a channel that receives a value each time
// claims.index.json is created, written, or renamed into place. Changes
// that arrive while a notification is still unread are merged into that
// one notification. The channel is closed when the watcher is closed.
func (iw *IndexWatcher) Changed() <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-iw.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(iw.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case _, ok := <-iw.watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out
}

// Close stops the watcher.
func (iw *IndexWatcher) Close() error {
	return iw.watcher.Close()
}
