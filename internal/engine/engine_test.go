package engine

import (
	"context"
	"testing"

	"github.com/lazypower/mem/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, zerolog.Nop())
}

func seedMemory(t *testing.T, e *Engine, title, content, project string) *store.Memory {
	t.Helper()
	m, err := e.DB.SaveMemory(context.Background(), store.SaveParams{
		Title: title, Type: store.TypeManual, Content: content, Project: project,
	})
	require.NoError(t, err)
	return m
}

func seedFile(t *testing.T, e *Engine, path, content, project string) {
	t.Helper()
	_, err := e.DB.UpsertFile(context.Background(), store.UpsertFileParams{
		SourcePath: path, ProjectPath: project, ProjectName: "app", Title: path, Content: content, MtimeSecs: 1,
	})
	require.NoError(t, err)
}
