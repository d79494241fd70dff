package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLines(t *testing.T) {
	lines := `{"type":"user","message":{"role":"user","content":"Hello, help me with Go code"}}
{"type":"assistant","message":{"role":"assistant","content":"Sure, I can help with Go."}}
{"type":"user","message":{"role":"user","content":"Write a function to sort a slice"}}
{"type":"assistant","message":{"role":"assistant","content":"Here is a sort function for you."}}`

	entries, err := ParseLines(lines)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, "user", entries[0].Type)
	assert.Equal(t, "Hello, help me with Go code", entries[0].Text)
	assert.Equal(t, "assistant", entries[1].Type)
	assert.Equal(t, "assistant", entries[1].Role)
}

func TestParseLinesContentArray(t *testing.T) {
	lines := `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Here is the code:"},{"type":"tool_use","id":"tu_1","name":"Write"}]}}`

	entries, err := ParseLines(lines)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Here is the code:", entries[0].Text)
}

func TestParseLinesSkipsShortAndJSON(t *testing.T) {
	lines := `{"type":"user","message":{"role":"user","content":"ok"}}
{"type":"user","message":{"role":"user","content":"{\"json\":\"data\"}"}}
{"type":"user","message":{"role":"user","content":"This is a real message"}}`

	entries, err := ParseLines(lines)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "This is a real message", entries[0].Text)
}

func TestParseLinesStripsSystemReminder(t *testing.T) {
	lines := `{"type":"user","message":{"role":"user","content":"Do something <system-reminder>ignore this</system-reminder> please help"}}`

	entries, err := ParseLines(lines)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Do something  please help", entries[0].Text)
}

func TestParseLinesMalformed(t *testing.T) {
	lines := `not json at all
{"type":"user","message":{"role":"user","content":"Valid message here"}}
{broken json
{"type":"user","message":"not an object"}`

	entries, err := ParseLines(lines)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestParseLinesLongLines(t *testing.T) {
	big := strings.Repeat("y", 1024*1024)
	lines := `{"type":"user","message":{"role":"user","content":"` + big + `"}}` + "\n" +
		`{"type":"user","message":{"role":"user","content":"` + strings.Repeat("z", 5*1024*1024) + `"}}` + "\n" +
		`{"type":"user","message":{"role":"user","content":"After the long line"}}`

	entries, err := ParseLines(lines)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Len(t, entries[0].Text, len(big))
	assert.Equal(t, "After the long line", entries[1].Text)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	big := strings.Repeat("y", 200*1024)
	content := `{"type":"user","message":{"role":"user","content":"Summarize the design"}}` + "\n" +
		`{"type":"assistant","message":{"role":"assistant","content":"` + big + `"}}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	entries, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Len(t, entries[1].Text, len(big))

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestCountUserMessages(t *testing.T) {
	entries := []ParsedEntry{
		{Type: "user", Text: "hello"},
		{Type: "assistant", Text: "hi"},
		{Type: "user", Text: "world"},
	}
	assert.Equal(t, 2, CountUserMessages(entries))
}

func TestCondense(t *testing.T) {
	entries := []ParsedEntry{
		{Type: "user", Text: "Help me write Go code"},
		{Type: "assistant", Text: "Sure, I can help."},
		{Type: "assistant", Text: "Here is some middle content."},
		{Type: "assistant", Text: "Final answer here."},
		{Type: "user", Text: "Thanks that works"},
	}

	result := Condense(entries, 0)
	assert.Contains(t, result, "[USER] Help me write Go code")
	assert.Contains(t, result, "[USER] Thanks that works")
	assert.Contains(t, result, "[ASSISTANT] Sure, I can help.")
	assert.Contains(t, result, "[ASSISTANT] Here is some middle content.")
	assert.Contains(t, result, "[ASSISTANT] Final answer here.")

	// Conversation order is preserved.
	assert.Less(t, strings.Index(result, "Sure"), strings.Index(result, "Thanks"))
}

func TestCondenseTruncation(t *testing.T) {
	longText := strings.Repeat("x", 2000)
	entries := []ParsedEntry{
		{Type: "assistant", Text: longText},
		{Type: "assistant", Text: longText},
		{Type: "assistant", Text: longText},
	}

	blocks := strings.Split(Condense(entries, 0), "\n\n")
	require.Len(t, blocks, 3)
	assert.Len(t, blocks[0], len("[ASSISTANT] ")+firstLastAssistantMax+3)
	assert.Len(t, blocks[1], len("[ASSISTANT] ")+midAssistantMax+3)
	assert.Len(t, blocks[2], len("[ASSISTANT] ")+firstLastAssistantMax+3)
}

func TestCondenseBudgetDropsMiddleFirst(t *testing.T) {
	entries := []ParsedEntry{
		{Type: "user", Text: "first question"},
		{Type: "assistant", Text: "opening reply"},
		{Type: "assistant", Text: strings.Repeat("m", 150)},
		{Type: "assistant", Text: "closing reply"},
	}

	result := Condense(entries, 80)
	assert.NotContains(t, result, "mmm")
	assert.Contains(t, result, "opening reply")
	assert.Contains(t, result, "closing reply")
}

func TestCondenseEmpty(t *testing.T) {
	assert.Empty(t, Condense(nil, 0))
	assert.Empty(t, Condense([]ParsedEntry{}, 100))
}

func TestTruncateRuneSafe(t *testing.T) {
	assert.Equal(t, "héll...", truncate("héllo wörld", 4))
	assert.Equal(t, "short", truncate("short", 10))
}
