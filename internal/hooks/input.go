package hooks

import (
	"os"
	"path/filepath"
)

// HookInput is the JSON the assistant sends on stdin to hook handlers.
// All fields are optional; different events populate different subsets.
type HookInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	CWD            string `json:"cwd"`
	HookEventName  string `json:"hook_event_name"`

	// SessionStart
	Source string `json:"source,omitempty"`

	// Stop. Set when the stop hook fires again from inside its own work.
	StopHookActive bool `json:"stop_hook_active,omitempty"`

	// SessionEnd
	Reason string `json:"reason,omitempty"`
}

// Project returns the project identity for the input: its working directory.
func (h *HookInput) Project() string {
	if h.CWD == "" {
		return ""
	}
	return filepath.Clean(h.CWD)
}

func osGetwd() (string, error) {
	return os.Getwd()
}
