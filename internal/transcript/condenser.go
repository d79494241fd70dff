package transcript

import (
	"strings"
	"unicode/utf8"
)

const (
	firstLastAssistantMax = 1000
	midAssistantMax       = 200
	userMax               = 1000
)

// Condense reduces transcript entries to the parts worth keeping in a
// session memory: every user message, the first and last assistant replies
// at up to 1000 characters, and middle replies at up to 200. Tool traffic
// and system reminders are already gone after parsing. A positive budget
// caps the whole result, dropping the oldest middle replies first.
func Condense(entries []ParsedEntry, budget int) string {
	if len(entries) == 0 {
		return ""
	}

	var assistantIdx []int
	for i, e := range entries {
		if e.Type == "assistant" {
			assistantIdx = append(assistantIdx, i)
		}
	}
	firstA, lastA := -1, -1
	if len(assistantIdx) > 0 {
		firstA, lastA = assistantIdx[0], assistantIdx[len(assistantIdx)-1]
	}

	blocks := make([]string, 0, len(entries))
	mid := make([]int, 0, len(entries))
	for i, e := range entries {
		switch e.Type {
		case "user":
			blocks = append(blocks, "[USER] "+truncate(e.Text, userMax))
		case "assistant":
			limit := midAssistantMax
			if i == firstA || i == lastA {
				limit = firstLastAssistantMax
			} else {
				mid = append(mid, len(blocks))
			}
			blocks = append(blocks, "[ASSISTANT] "+truncate(e.Text, limit))
		}
	}

	if budget > 0 {
		for _, idx := range mid {
			if joinedLen(blocks) <= budget {
				break
			}
			blocks[idx] = ""
		}
	}

	var b strings.Builder
	for _, block := range blocks {
		if block == "" {
			continue
		}
		b.WriteString(block)
		b.WriteString("\n\n")
	}
	out := strings.TrimSpace(b.String())
	if budget > 0 {
		out = truncate(out, budget)
	}
	return out
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

func joinedLen(blocks []string) int {
	n := 0
	for _, b := range blocks {
		if b != "" {
			n += utf8.RuneCountInString(b) + 2
		}
	}
	return n
}
