package artifact

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher reports preview clips removed or renamed behind koko's back.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
}

// Watch starts watching dir, creating it if needed.
func Watch(dir string) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create preview dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Info("fsnotify watching dir", "dir", dir)
	return &Watcher{dir: dir, watcher: w}, nil
}

// Next blocks until a preview clip disappears and returns its voice id. It
// returns false once the watcher is closed.
func (w *Watcher) Next() (string, bool) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return "", false
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			voice, ok := VoiceFromPreviewPath(event.Name)
			if !ok {
				continue
			}
			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			return voice, true

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return "", false
			}
			log.Debug("fsnotify error", "dir", w.dir, "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
