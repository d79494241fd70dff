package hooks

import "context"

// handleCompact re-injects recent memory before the assistant compacts
// its conversation.
func (h *Handler) handleCompact(ctx context.Context, input *HookInput) error {
	markdown, err := h.Engine.Context(ctx, input.Project(), h.contextLimit())
	if err != nil {
		return err
	}
	return WriteCompactOutput(h.Out, markdown)
}
