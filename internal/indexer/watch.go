package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch re-indexes matching documents under root as they are written,
// until ctx is done. Bursts of events for the same file are debounced.
func (ix *Indexer) Watch(ctx context.Context, root, project string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	if project == "" {
		project = filepath.Base(root)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if _, err := ix.addTree(w, root, root); err != nil {
		return err
	}
	ix.log.Info().Str("root", root).Msg("watching for document changes")

	pending := map[string]struct{}{}
	var flush <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if skipDir(filepath.Base(event.Name)) {
					continue
				}
				// Files may land before the watch is registered.
				found, err := ix.addTree(w, root, event.Name)
				if err != nil {
					ix.log.Warn().Err(err).Str("dir", event.Name).Msg("watch new directory")
				}
				for _, p := range found {
					pending[p] = struct{}{}
				}
				if len(found) > 0 {
					flush = time.After(ix.debounce)
				}
				continue
			}
			if !ix.matches(root, event.Name) {
				continue
			}
			ix.log.Debug().
				Str("file", filepath.Base(event.Name)).
				Str("op", event.Op.String()).
				Msg("document change detected")
			pending[event.Name] = struct{}{}
			flush = time.After(ix.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			ix.log.Error().Err(err).Msg("file watcher error")

		case <-flush:
			for p := range pending {
				outcome, err := ix.IndexFile(ctx, root, project, p)
				if err != nil {
					ix.log.Warn().Err(err).Str("path", p).Msg("reindex")
					continue
				}
				ix.log.Debug().Str("path", p).Stringer("outcome", outcome).Msg("reindexed")
			}
			clear(pending)
			flush = nil
		}
	}
}

// addTree watches dir and its subdirectories; fsnotify is not recursive.
// It returns the matching documents already present under dir.
func (ix *Indexer) addTree(w *fsnotify.Watcher, root, dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if d.Type().IsRegular() && ix.matches(root, p) {
				found = append(found, p)
			}
			return nil
		}
		if p != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
	return found, err
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
