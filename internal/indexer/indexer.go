// Package indexer snapshots project documentation into the store so it is
// searchable alongside session memories.
package indexer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/lazypower/mem/internal/store"
	"github.com/rs/zerolog"
)

// DefaultPatterns are the documents indexed when none are configured.
var DefaultPatterns = []string{"CLAUDE.md", "README.md", "docs/**/*.md"}

// maxFileBytes skips generated or vendored giants.
const maxFileBytes = 1 << 20

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
}

// Indexer walks project trees and upserts matching documents.
type Indexer struct {
	DB       *store.DB
	Patterns []string
	log      zerolog.Logger
	debounce time.Duration
}

// New creates an Indexer. Empty patterns select DefaultPatterns.
func New(db *store.DB, patterns []string, log zerolog.Logger) *Indexer {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return &Indexer{
		DB:       db,
		Patterns: patterns,
		log:      log,
		debounce: 500 * time.Millisecond,
	}
}

// Result counts upsert outcomes for one scan.
type Result struct {
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

func (r *Result) add(o store.UpsertOutcome) {
	switch o {
	case store.UpsertNew:
		r.New++
	case store.UpsertUpdated:
		r.Updated++
	case store.UpsertUnchanged:
		r.Unchanged++
	}
}

// Scan indexes every file under root that matches a pattern. project names
// the project; empty uses the base name of root. Unreadable files are
// logged and counted, not fatal.
func (ix *Indexer) Scan(ctx context.Context, root, project string) (Result, error) {
	var res Result
	root, err := filepath.Abs(root)
	if err != nil {
		return res, fmt.Errorf("resolve root: %w", err)
	}
	if project == "" {
		project = filepath.Base(root)
	}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			ix.log.Warn().Err(err).Str("path", p).Msg("walk")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if p != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !ix.matches(root, p) {
			return nil
		}

		outcome, err := ix.IndexFile(ctx, root, project, p)
		if err != nil {
			if errors.Is(err, store.ErrInconsistentState) {
				return err
			}
			ix.log.Warn().Err(err).Str("path", p).Msg("index file")
			res.Failed++
			return nil
		}
		res.add(outcome)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("scan %s: %w", root, err)
	}

	ix.log.Info().
		Str("root", root).
		Int("new", res.New).
		Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).
		Int("failed", res.Failed).
		Msg("index scan complete")
	return res, nil
}

// IndexFile upserts a single document.
func (ix *Indexer) IndexFile(ctx context.Context, root, project, p string) (store.UpsertOutcome, error) {
	info, err := os.Stat(p)
	if err != nil {
		return 0, err
	}
	if info.Size() > maxFileBytes {
		return 0, fmt.Errorf("%s: %d bytes exceeds %d", p, info.Size(), maxFileBytes)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return 0, err
	}
	content := string(data)

	return ix.DB.UpsertFile(ctx, store.UpsertFileParams{
		SourcePath:  p,
		ProjectPath: root,
		ProjectName: project,
		Title:       Title(content, p),
		Content:     content,
		MtimeSecs:   store.FileMtime(info.ModTime()),
	})
}

func (ix *Indexer) matches(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range ix.Patterns {
		if Match(pattern, rel) {
			return true
		}
	}
	return false
}

func skipDir(name string) bool {
	return skipDirs[name] || strings.HasPrefix(name, ".")
}

// Match reports whether a slash-separated relative path matches pattern.
// A "**" segment matches zero or more directories. Bad patterns never match.
func Match(pattern, rel string) bool {
	ok, err := doublestar.Match(pattern, rel)
	return err == nil && ok
}

// Title returns the first markdown heading in content, or the file name.
func Title(content, p string) string {
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "#") {
			continue
		}
		if title := strings.TrimSpace(strings.TrimLeft(line, "#")); title != "" {
			return title
		}
	}
	return filepath.Base(p)
}
