package store

import "time"

// MemoryType classifies how a memory was captured.
type MemoryType string

const (
	// TypeAuto is reserved for the automated capture path (Stop hook).
	TypeAuto     MemoryType = "auto"
	TypeManual   MemoryType = "manual"
	TypePattern  MemoryType = "pattern"
	TypeDecision MemoryType = "decision"
)

var memoryTypes = []MemoryType{TypeAuto, TypeManual, TypePattern, TypeDecision}

// ParseMemoryType maps the on-disk form back to a MemoryType. Matching is case-sensitive.
func ParseMemoryType(s string) (MemoryType, error) {
	for _, t := range memoryTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", &ParseError{Kind: "memory type", Value: s, Valid: enumStrings(memoryTypes)}
}

// ParseUserMemoryType is ParseMemoryType without the auto-capture type,
// for requests coming from users and agents.
func ParseUserMemoryType(s string) (MemoryType, error) {
	t, err := ParseMemoryType(s)
	if err != nil || t == TypeAuto {
		return "", &ParseError{Kind: "memory type", Value: s, Valid: enumStrings(memoryTypes[1:])}
	}
	return t, nil
}

func (t MemoryType) String() string { return string(t) }

// MemoryStatus is active until decay marks the memory cold.
type MemoryStatus string

const (
	StatusActive MemoryStatus = "active"
	StatusCold   MemoryStatus = "cold"
)

var memoryStatuses = []MemoryStatus{StatusActive, StatusCold}

func ParseMemoryStatus(s string) (MemoryStatus, error) {
	for _, st := range memoryStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", &ParseError{Kind: "memory status", Value: s, Valid: enumStrings(memoryStatuses)}
}

func (s MemoryStatus) String() string { return string(s) }

// MemoryScope controls cross-project visibility.
type MemoryScope string

const (
	ScopeProject MemoryScope = "project"
	ScopeGlobal  MemoryScope = "global"
)

var memoryScopes = []MemoryScope{ScopeProject, ScopeGlobal}

func ParseMemoryScope(s string) (MemoryScope, error) {
	for _, sc := range memoryScopes {
		if string(sc) == s {
			return sc, nil
		}
	}
	return "", &ParseError{Kind: "memory scope", Value: s, Valid: enumStrings(memoryScopes)}
}

func (s MemoryScope) String() string { return string(s) }

func enumStrings[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

// Memory is a captured session note.
type Memory struct {
	ID             string       `json:"id"`
	SessionID      string       `json:"session_id,omitempty"`
	Project        string       `json:"project,omitempty"`
	Title          string       `json:"title"`
	Type           MemoryType   `json:"type"`
	Content        string       `json:"content"`
	GitDiff        string       `json:"git_diff,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	AccessCount    int64        `json:"access_count"`
	LastAccessedAt *time.Time   `json:"last_accessed_at,omitempty"`
	Status         MemoryStatus `json:"status"`
	Scope          MemoryScope  `json:"scope"`
}

// IndexedFile is a snapshot of an externally maintained document.
type IndexedFile struct {
	ID          string    `json:"id"`
	SourcePath  string    `json:"source_path"`
	ProjectPath string    `json:"project_path,omitempty"`
	ProjectName string    `json:"project_name"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	IndexedAt   time.Time `json:"indexed_at"`
	MtimeSecs   int64     `json:"file_mtime_secs"`
}
