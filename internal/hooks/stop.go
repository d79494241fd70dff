package hooks

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lazypower/mem/internal/store"
	"github.com/lazypower/mem/internal/transcript"
)

// transcriptBudget caps the condensed transcript stored in an auto memory.
const transcriptBudget = 4000

// handleStop ends the session and saves an auto memory describing it.
// Session bookkeeping is best effort; only the memory save can fail the hook.
func (h *Handler) handleStop(ctx context.Context, input *HookInput) error {
	if input.StopHookActive {
		return nil
	}

	project := input.Project()
	if project == "" {
		wd, err := h.getwd()
		if err != nil {
			return fmt.Errorf("resolve project: %w", err)
		}
		h.Log.Warn().Str("cwd", wd).Msg("no cwd in hook stdin, using process working directory")
		project = wd
	}

	var analytics *transcript.Analytics
	if input.SessionID != "" {
		if err := h.DB.EndSession(ctx, input.SessionID); err != nil {
			h.Log.Warn().Err(err).Str("session", input.SessionID).Msg("end session")
		}
		analytics = h.recordAnalytics(ctx, input)
	}

	var entries []transcript.ParsedEntry
	if input.TranscriptPath != "" {
		var err error
		if entries, err = transcript.ParseFile(input.TranscriptPath); err != nil {
			h.Log.Warn().Err(err).Str("path", input.TranscriptPath).Msg("read transcript")
		}
	}

	m, err := h.DB.SaveMemory(ctx, store.SaveParams{
		Title:     autoTitle(project),
		Type:      store.TypeAuto,
		Content:   autoContent(project, h.now(), analytics, entries),
		Project:   project,
		SessionID: input.SessionID,
	})
	if err != nil {
		return fmt.Errorf("save session memory: %w", err)
	}
	h.Log.Debug().Str("id", m.ID).Str("project", project).Msg("session memory saved")
	return nil
}

func (h *Handler) recordAnalytics(ctx context.Context, input *HookInput) *transcript.Analytics {
	if input.TranscriptPath == "" {
		return nil
	}
	a, err := transcript.ParseAnalytics(input.TranscriptPath)
	if err != nil {
		h.Log.Warn().Err(err).Str("path", input.TranscriptPath).Msg("parse transcript analytics")
		return nil
	}
	if a == nil {
		return nil
	}
	if _, err := h.DB.UpdateSessionAnalytics(ctx, input.SessionID, store.SessionAnalytics{
		TurnCount:           a.TurnCount,
		DurationSecs:        a.DurationSecs,
		InputTokens:         a.InputTokens,
		OutputTokens:        a.OutputTokens,
		CacheReadTokens:     a.CacheReadTokens,
		CacheCreationTokens: a.CacheCreationTokens,
	}); err != nil {
		h.Log.Warn().Err(err).Str("session", input.SessionID).Msg("update session analytics")
	}
	return a
}

func autoTitle(project string) string {
	name := filepath.Base(project)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "unknown"
	}
	return name + ": session ended"
}

func autoContent(project string, now time.Time, a *transcript.Analytics, entries []transcript.ParsedEntry) string {
	parts := []string{fmt.Sprintf("Project: %s\nCaptured: %s", project, now.UTC().Format("2006-01-02 15:04 UTC"))}

	if a != nil {
		dur := time.Duration(a.DurationSecs) * time.Second
		parts = append(parts, fmt.Sprintf(
			"## Session\nTurns: %d\nDuration: %s\nTokens: %s in, %s out, %s cache read, %s cache write",
			a.TurnCount, dur,
			humanize.Comma(a.InputTokens), humanize.Comma(a.OutputTokens),
			humanize.Comma(a.CacheReadTokens), humanize.Comma(a.CacheCreationTokens)))
	}

	if condensed := transcript.Condense(entries, transcriptBudget); condensed != "" {
		parts = append(parts, "## Transcript\n"+condensed)
	}

	return strings.Join(parts, "\n\n")
}
