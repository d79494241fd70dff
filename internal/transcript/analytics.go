package transcript

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Analytics summarizes a transcript's assistant turns and token usage.
type Analytics struct {
	TurnCount           int64
	DurationSecs        int64
	InputTokens         int64
	OutputTokens        int64
	CacheReadTokens     int64
	CacheCreationTokens int64
}

// ParseAnalytics reads a transcript file and totals its assistant turns.
// It returns nil when the transcript has no assistant entries.
func ParseAnalytics(path string) (*Analytics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	return analyze(f)
}

// AnalyticsFromLines is ParseAnalytics over content held in memory.
func AnalyticsFromLines(content string) (*Analytics, error) {
	return analyze(strings.NewReader(content))
}

func analyze(r io.Reader) (*Analytics, error) {
	var a Analytics
	var first, last time.Time

	err := scanLines(r, func(d decoded) {
		if !d.at.IsZero() {
			if first.IsZero() || d.at.Before(first) {
				first = d.at
			}
			if last.IsZero() || d.at.After(last) {
				last = d.at
			}
		}

		if d.entry.Type != "assistant" {
			return
		}
		a.TurnCount++
		if d.message == nil || d.message.Usage == nil {
			return
		}
		u := d.message.Usage
		a.InputTokens += u.InputTokens
		a.OutputTokens += u.OutputTokens
		a.CacheReadTokens += u.CacheReadInputTokens
		a.CacheCreationTokens += u.CacheCreationInputTokens
	})
	if err != nil {
		return nil, err
	}
	if a.TurnCount == 0 {
		return nil, nil
	}

	if !first.IsZero() {
		a.DurationSecs = max(0, int64(last.Sub(first)/time.Second))
	}
	return &a, nil
}
