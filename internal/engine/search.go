package engine

import (
	"context"
	"fmt"

	"github.com/lazypower/mem/internal/store"
)

// ResultKind names the source of a unified search result.
type ResultKind string

const (
	KindMemory ResultKind = "memory"
	KindFile   ResultKind = "file"
)

// Result is a memory or an indexed file. Exactly one of Memory and File is set.
type Result struct {
	Kind   ResultKind         `json:"kind"`
	Memory *store.Memory      `json:"memory,omitempty"`
	File   *store.IndexedFile `json:"file,omitempty"`
}

// Title returns the title of whichever record the result holds.
func (r Result) Title() string {
	if r.Memory != nil {
		return r.Memory.Title
	}
	if r.File != nil {
		return r.File.Title
	}
	return ""
}

// Search queries memories and indexed files independently, each up to
// limit, and interleaves them one from each source in turn, memory first.
// Cross-source relevance scores are not comparable, so no score merge is
// attempted.
func (e *Engine) Search(ctx context.Context, query, project string, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}

	memories, err := e.DB.SearchMemories(ctx, query, project, limit)
	if err != nil {
		return nil, fmt.Errorf("unified search: %w", err)
	}
	files, err := e.DB.SearchFiles(ctx, query, project, limit)
	if err != nil {
		return nil, fmt.Errorf("unified search: %w", err)
	}

	e.log.Debug().
		Str("query", query).
		Str("project", project).
		Int("memories", len(memories)).
		Int("files", len(files)).
		Msg("unified search")

	return interleave(memories, files, limit), nil
}

func interleave(memories []store.Memory, files []store.IndexedFile, limit int) []Result {
	results := make([]Result, 0, min(limit, len(memories)+len(files)))
	for i := 0; len(results) < limit && (i < len(memories) || i < len(files)); i++ {
		if i < len(memories) {
			results = append(results, Result{Kind: KindMemory, Memory: &memories[i]})
		}
		if i < len(files) && len(results) < limit {
			results = append(results, Result{Kind: KindFile, File: &files[i]})
		}
	}
	return results
}
