package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
)

// maxLineBytes bounds one JSONL line. Tool results can be large.
const maxLineBytes = 4 * 1024 * 1024

// Entry is a single line of an assistant session JSONL transcript.
type Entry struct {
	Type      string          `json:"type"` // "user", "assistant", "system"
	Timestamp string          `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
}

// Message is the parsed message content.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"` // string or []ContentItem
	Usage   *Usage          `json:"usage"`
}

// Usage is the token accounting attached to assistant messages.
type Usage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
}

// ContentItem represents a single content block (text, tool_use, tool_result).
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ParsedEntry holds a transcript entry reduced to its readable text.
type ParsedEntry struct {
	Type string
	Role string
	Text string
}

var systemReminderRe = regexp.MustCompile(`<system-reminder>[\s\S]*?</system-reminder>`)

// decoded is one transcript line with everything the readers need.
type decoded struct {
	entry   Entry
	message *Message
	at      time.Time
}

// scanLines decodes each non-blank JSONL line of r and hands it to fn.
// Malformed lines and lines longer than maxLineBytes are skipped.
func scanLines(r io.Reader, fn func(decoded)) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	oversized := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read transcript: %w", err)
		}
		if !oversized {
			if len(line)+len(chunk) > maxLineBytes {
				oversized = true
				line = line[:0]
			} else {
				line = append(line, chunk...)
			}
		}
		if isPrefix {
			continue
		}
		if !oversized {
			emitLine(line, fn)
		}
		line = line[:0]
		oversized = false
	}
	if !oversized && len(line) > 0 {
		emitLine(line, fn)
	}
	return nil
}

func emitLine(line []byte, fn func(decoded)) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	d, err := decodeLine(line)
	if err != nil {
		return
	}
	fn(d)
}

func decodeLine(line []byte) (decoded, error) {
	var d decoded
	if err := json.Unmarshal(line, &d.entry); err != nil {
		return d, err
	}
	if len(d.entry.Message) > 0 {
		var msg Message
		if err := json.Unmarshal(d.entry.Message, &msg); err == nil {
			d.message = &msg
		}
	}
	if d.entry.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, d.entry.Timestamp); err == nil {
			d.at = t
		}
	}
	return d, nil
}

// ParseFile reads a JSONL transcript file and returns its readable entries.
func ParseFile(path string) ([]ParsedEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	return parse(f)
}

// ParseLines parses transcript content held in memory.
func ParseLines(content string) ([]ParsedEntry, error) {
	return parse(strings.NewReader(content))
}

func parse(r io.Reader) ([]ParsedEntry, error) {
	var entries []ParsedEntry
	err := scanLines(r, func(d decoded) {
		if e, ok := readable(d); ok {
			entries = append(entries, e)
		}
	})
	return entries, err
}

// readable drops entries with no conversational text: tool traffic,
// injected reminders, near-empty acknowledgements and raw JSON payloads.
func readable(d decoded) (ParsedEntry, bool) {
	if d.entry.Type == "" || d.message == nil {
		return ParsedEntry{}, false
	}

	text := extractText(d.message.Content)
	text = systemReminderRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if len(text) < 5 || strings.HasPrefix(text, "{") {
		return ParsedEntry{}, false
	}

	return ParsedEntry{Type: d.entry.Type, Role: d.message.Role, Text: text}, true
}

// extractText handles the polymorphic content field.
// It may be a plain string or an array of ContentItem.
func extractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []ContentItem
	if err := json.Unmarshal(raw, &items); err == nil {
		var texts []string
		for _, item := range items {
			if item.Type == "text" && item.Text != "" {
				texts = append(texts, item.Text)
			}
		}
		return strings.Join(texts, "\n")
	}

	return ""
}

// CountUserMessages returns the number of user messages in the entries.
func CountUserMessages(entries []ParsedEntry) int {
	count := 0
	for _, e := range entries {
		if e.Type == "user" {
			count++
		}
	}
	return count
}
