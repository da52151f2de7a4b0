package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/youruser/instagrid/internal/grid"
	imagepkg "github.com/youruser/instagrid/internal/image"
	"k8s.io/klog/v2"
)

// Watcher ingests images dropped into a directory.
type Watcher struct {
	Dir string
	// Add receives each newly ingested record.
	Add func(grid.Image)

	seen map[string]stamp
}

type stamp struct {
	size int64
	mod  int64
}

func NewWatcher(dir string, add func(grid.Image)) *Watcher {
	return &Watcher{Dir: dir, Add: add, seen: map[string]stamp{}}
}

// Prime marks the files already in the directory as seen so only later
// drops are ingested.
func (w *Watcher) Prime() error {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		w.changed(filepath.Join(w.Dir, e.Name()))
	}
	return nil
}

// changed reports whether path differs from when it was last seen.
func (w *Watcher) changed(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	s := stamp{size: fi.Size(), mod: fi.ModTime().UnixNano()}
	if w.seen[path] == s {
		return false
	}
	w.seen[path] = s
	return true
}

func (w *Watcher) handle(path string) {
	if hidden(filepath.Base(path)) || !w.changed(path) {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		klog.V(1).Infof("ignoring %s: %v", path, err)
		return
	}
	// a file still being copied in fails to decode; its next write retries
	if _, err := imagepkg.Decode(data); err != nil {
		klog.V(1).Infof("ignoring %s for now: %v", path, err)
		return
	}
	img, err := FromBytes(filepath.Base(path), data)
	if err != nil {
		klog.V(1).Infof("ignoring %s: %v", path, err)
		return
	}
	klog.Infof("ingested %s as %s", path, img.ID)
	w.Add(img)
}

// Run watches Dir until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.Dir, err)
	}
	klog.Infof("watching %s for new images ...", w.Dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			klog.V(2).Infof("event: %v", event)
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.handle(event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			klog.Warningf("watch error: %v", err)
		}
	}
}
