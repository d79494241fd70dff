package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/lazypower/mem/internal/store"
)

// NoContext is rendered when a project has no visible memories.
const NoContext = "No recent memories for this project."

// Context renders the most recent memories visible to project as markdown
// for session injection.
func (e *Engine) Context(ctx context.Context, project string, limit int) (string, error) {
	memories, err := e.DB.RecentMemories(ctx, project, limit)
	if err != nil {
		return "", fmt.Errorf("build context: %w", err)
	}
	return FormatContext(memories), nil
}

// FormatContext renders memories as numbered markdown sections.
func FormatContext(memories []store.Memory) string {
	if len(memories) == 0 {
		return NoContext
	}

	var b strings.Builder
	b.WriteString("# Recent Session Memory\n\n")
	for i, m := range memories {
		fmt.Fprintf(&b, "## %d. %s (%s)\n\n%s\n\n",
			i+1, m.Title, m.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"), m.Content)
	}
	return b.String()
}
