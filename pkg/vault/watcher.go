package vault

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bastiangx/tagfilter/internal/utils"
	"github.com/bastiangx/tagfilter/pkg/syncer"
	"github.com/fsnotify/fsnotify"
)

// Watcher turns file system events under the vault into document
// notifications.
//
// fsnotify reports a rename as a remove of the old path and a create of the
// new one without pairing them, so renames surface as Deleted then Created.
// A content change is reported as Modified followed by StructuralResolved,
// since inline tags may have changed.
type Watcher struct {
	vault   *FS
	watcher *fsnotify.Watcher
	handle  func(syncer.Notification)

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for v. handle is called from a single
// goroutine.
func NewWatcher(v *FS, handle func(syncer.Notification)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{vault: v, watcher: w, handle: handle, done: make(chan struct{})}, nil
}

// Start watches the vault recursively until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.vault.root); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
	w.wg.Wait()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.vault.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						w.vault.log.Warn("cannot watch new directory", "path", ev.Name, "err", err)
					}
					continue
				}
			}
			for _, n := range w.translate(ev) {
				w.handle(n)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.vault.log.Warn("watch error", "err", err)
		}
	}
}

// translate maps one fsnotify event to notifications. Events for temp files,
// hidden paths and non-documents yield nothing.
func (w *Watcher) translate(ev fsnotify.Event) []syncer.Notification {
	if strings.HasPrefix(filepath.Base(ev.Name), utils.TempPrefix) {
		return nil
	}
	id, ok := w.vault.ID(ev.Name)
	if !ok {
		return nil
	}
	switch {
	case ev.Has(fsnotify.Create):
		return []syncer.Notification{{Kind: syncer.Created, DocumentID: id}}
	case ev.Has(fsnotify.Write):
		return []syncer.Notification{
			{Kind: syncer.Modified, DocumentID: id},
			{Kind: syncer.StructuralResolved, DocumentID: id},
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return []syncer.Notification{{Kind: syncer.Deleted, DocumentID: id}}
	}
	return nil
}
