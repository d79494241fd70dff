package store

import (
	"database/sql"
	"strings"
)

// phraseQuery turns free text into a single FTS5 phrase. Doubling embedded
// quotes keeps the whole input inside the phrase, so AND/OR/NEAR, `*`, `^`
// and column filters are matched as literal text rather than parsed.
func phraseQuery(q string) string {
	return `"` + strings.ReplaceAll(stripControls(q), `"`, `""`) + `"`
}

// stripControls replaces C0 control characters and DEL with spaces.
// FTS5 rejects a query holding a NUL.
func stripControls(q string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, q)
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

func nullString(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}
