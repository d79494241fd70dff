package engine

import (
	"context"
	"testing"
	"time"

	"github.com/lazypower/mem/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatContextEmpty(t *testing.T) {
	assert.Equal(t, NoContext, FormatContext(nil))
}

func TestFormatContext(t *testing.T) {
	memories := []store.Memory{
		{Title: "Auth decision", Content: "Chose JWT", CreatedAt: time.Date(2026, 2, 20, 9, 5, 0, 0, time.UTC)},
		{Title: "Build", Content: "Use make", CreatedAt: time.Date(2026, 2, 19, 18, 30, 0, 0, time.UTC)},
	}

	want := "# Recent Session Memory\n\n" +
		"## 1. Auth decision (2026-02-20 09:05 UTC)\n\nChose JWT\n\n" +
		"## 2. Build (2026-02-19 18:30 UTC)\n\nUse make\n\n"
	assert.Equal(t, want, FormatContext(memories))
}

func TestContextScopedToProject(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	seedMemory(t, e, "mine", "body", "/app")
	seedMemory(t, e, "theirs", "body", "/other")

	out, err := e.Context(ctx, "/app", 10)
	require.NoError(t, err)
	assert.Contains(t, out, "## 1. mine")
	assert.NotContains(t, out, "theirs")

	out, err = e.Context(ctx, "/empty", 10)
	require.NoError(t, err)
	assert.Equal(t, NoContext, out)
}
