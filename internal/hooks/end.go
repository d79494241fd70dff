package hooks

import "context"

func (h *Handler) handleEnd(ctx context.Context, input *HookInput) error {
	if input.SessionID == "" {
		return nil
	}
	return h.DB.EndSession(ctx, input.SessionID)
}
