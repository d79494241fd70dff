package hooks

import (
	"encoding/json"
	"fmt"
	"io"
)

// SessionStartOutput is the JSON structure the assistant expects on stdout
// from the SessionStart hook.
type SessionStartOutput struct {
	HookSpecificOutput struct {
		HookEventName     string `json:"hookEventName"`
		AdditionalContext string `json:"additionalContext"`
	} `json:"hookSpecificOutput"`
}

// CompactOutput is the PreCompact hook response.
type CompactOutput struct {
	AdditionalContext string `json:"additionalContext"`
}

// WriteSessionStartOutput writes the SessionStart response to w.
func WriteSessionStartOutput(w io.Writer, context string) error {
	out := SessionStartOutput{}
	out.HookSpecificOutput.HookEventName = "SessionStart"
	out.HookSpecificOutput.AdditionalContext = context
	return json.NewEncoder(w).Encode(out)
}

// WriteCompactOutput writes the PreCompact response to w.
func WriteCompactOutput(w io.Writer, context string) error {
	return json.NewEncoder(w).Encode(CompactOutput{AdditionalContext: context})
}

// ReportError writes a hook failure to w (stderr). Hooks report and exit 0
// so a memory failure never blocks the assistant.
func ReportError(w io.Writer, err error) {
	fmt.Fprintf(w, "mem hook: %v\n", err)
}
