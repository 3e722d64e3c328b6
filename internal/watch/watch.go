// Package watch follows the message log from outside the daemon process.
package watch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/matheus3301/autoreader/internal/store"
)

// Follower reports messages appended to a log document after it was
// created. The directory is watched rather than the file because every
// write replaces the file by rename.
type Follower struct {
	log     *store.Messages
	name    string
	watcher *fsnotify.Watcher
	seen    int
}

// NewFollower snapshots the current log length and starts watching.
func NewFollower(path string) (*Follower, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	log := store.NewMessages(path)
	return &Follower{
		log:     log,
		name:    filepath.Base(path),
		watcher: w,
		seen:    log.Count(),
	}, nil
}

// Run calls fn for each new message until ctx is done. A shrinking log
// (history cleared) restarts from its first message.
func (f *Follower) Run(ctx context.Context, fn func(store.Message)) error {
	defer f.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(evt.Name) != f.name || !evt.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
				continue
			}
			f.emit(fn)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		}
	}
}

func (f *Follower) emit(fn func(store.Message)) {
	msgs := f.log.All()
	if len(msgs) < f.seen {
		f.seen = 0
	}
	for _, m := range msgs[f.seen:] {
		fn(m)
	}
	f.seen = len(msgs)
}
