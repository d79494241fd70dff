package hooks

import "context"

// handleStart records the session and injects recent project memory. A
// store failure still produces a valid, empty response.
func (h *Handler) handleStart(ctx context.Context, input *HookInput) error {
	project := input.Project()

	if input.SessionID != "" {
		if _, err := h.DB.StartSession(ctx, input.SessionID, project, ""); err != nil {
			h.Log.Warn().Err(err).Str("session", input.SessionID).Msg("start session")
		}
	}

	markdown, err := h.Engine.Context(ctx, project, h.contextLimit())
	if err != nil {
		h.Log.Warn().Err(err).Msg("build context")
		markdown = ""
	}
	return WriteSessionStartOutput(h.Out, markdown)
}
