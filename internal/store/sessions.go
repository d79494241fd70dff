package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one assistant session, with transcript analytics once known.
type Session struct {
	ID        string     `json:"id"`
	Project   string     `json:"project,omitempty"`
	Goal      string     `json:"goal,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	SessionAnalytics
	AnalyticsAt *time.Time `json:"analytics_at,omitempty"`
}

// SessionAnalytics are the per-session counters taken from a transcript.
type SessionAnalytics struct {
	TurnCount           int64 `json:"turn_count"`
	DurationSecs        int64 `json:"duration_secs"`
	InputTokens         int64 `json:"input_tokens"`
	OutputTokens        int64 `json:"output_tokens"`
	CacheReadTokens     int64 `json:"cache_read_tokens"`
	CacheCreationTokens int64 `json:"cache_creation_tokens"`
}

const sessionColumns = `session_id, project, goal, started_at, ended_at,
	turn_count, duration_secs, input_tokens, output_tokens, cache_read_tokens, cache_creation_tokens, analytics_at`

// StartSession records a session start. An existing id is left as is.
// An empty id gets a generated one, which is returned.
func (db *DB) StartSession(ctx context.Context, id, project, goal string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	err := db.withLock(func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT OR IGNORE INTO sessions (session_id, project, goal, started_at)
			VALUES (?, NULLIF(?, ''), NULLIF(?, ''), ?)
		`, id, project, goal, toMillis(db.clock()))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return id, nil
}

// EndSession sets ended_at the first time it is called for a session.
func (db *DB) EndSession(ctx context.Context, id string) error {
	err := db.withLock(func() error {
		_, err := db.conn.ExecContext(ctx, `
			UPDATE sessions SET ended_at = ? WHERE session_id = ? AND ended_at IS NULL
		`, toMillis(db.clock()), id)
		return err
	})
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// UpdateSessionAnalytics writes transcript analytics once per session.
// It reports false when the session is unknown or already has analytics.
func (db *DB) UpdateSessionAnalytics(ctx context.Context, id string, a SessionAnalytics) (bool, error) {
	var n int64
	err := db.withLock(func() error {
		result, err := db.conn.ExecContext(ctx, `
			UPDATE sessions
			SET turn_count = ?, duration_secs = ?, input_tokens = ?, output_tokens = ?,
			    cache_read_tokens = ?, cache_creation_tokens = ?, analytics_at = ?
			WHERE session_id = ? AND analytics_at IS NULL
		`, a.TurnCount, a.DurationSecs, a.InputTokens, a.OutputTokens,
			a.CacheReadTokens, a.CacheCreationTokens, toMillis(db.clock()), id)
		if err != nil {
			return err
		}
		n, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("update session analytics: %w", err)
	}
	return n > 0, nil
}

// GetSession returns a session by id, or nil.
func (db *DB) GetSession(ctx context.Context, id string) (*Session, error) {
	var found *Session
	err := db.withLock(func() error {
		row := db.conn.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)
		s, err := scanSession(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return found, nil
}

// RecentSessions returns the most recent sessions, ordered by started_at DESC.
func (db *DB) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		return nil, nil
	}
	var sessions []Session
	err := db.withLock(func() error {
		rows, err := db.conn.QueryContext(ctx, `
			SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC, id DESC LIMIT ?
		`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			s, err := scanSession(rows)
			if err != nil {
				return fmt.Errorf("scan session: %w", err)
			}
			sessions = append(sessions, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(row scanner) (Session, error) {
	var s Session
	var project, goal sql.NullString
	var startedAt int64
	var endedAt, analyticsAt sql.NullInt64
	err := row.Scan(&s.ID, &project, &goal, &startedAt, &endedAt,
		&s.TurnCount, &s.DurationSecs, &s.InputTokens, &s.OutputTokens,
		&s.CacheReadTokens, &s.CacheCreationTokens, &analyticsAt)
	if err != nil {
		return s, err
	}
	s.Project = nullString(project)
	s.Goal = nullString(goal)
	s.StartedAt = fromMillis(startedAt)
	if endedAt.Valid {
		t := fromMillis(endedAt.Int64)
		s.EndedAt = &t
	}
	if analyticsAt.Valid {
		t := fromMillis(analyticsAt.Int64)
		s.AnalyticsAt = &t
	}
	return s, nil
}
