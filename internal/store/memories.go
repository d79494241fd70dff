package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// DecayRatePerDay is the age weight in the retention score.
const DecayRatePerDay = 0.05

// DefaultDecayThreshold is the score below which a memory goes cold.
const DefaultDecayThreshold = 0.1

const memoryColumns = `m.memory_id, m.session_id, m.project, m.title, m.type, m.content, m.git_diff,
	m.created_at, m.access_count, m.last_accessed_at, m.status, m.scope`

// visibleTo restricts to active memories of a project plus global ones.
// An empty project argument disables the project clause.
const visibleTo = `m.status = 'active' AND (? = '' OR m.project = ? OR m.scope = 'global')`

// retentionScore mirrors RetentionScore in SQL. Age is clamped at zero so a
// row stamped slightly in the future never divides by a shrinking denominator.
const retentionScore = `(m.access_count + 1.0) / (1.0 + max(0.0, (? - m.created_at) / 86400000.0) * 0.05)`

// SaveParams holds parameters for saving a memory.
type SaveParams struct {
	Title     string
	Type      MemoryType
	Content   string
	Project   string
	SessionID string
	GitDiff   string
}

// RetentionScore is (access_count + 1) / (1 + age_days * DecayRatePerDay).
func RetentionScore(accessCount int64, age time.Duration) float64 {
	days := math.Max(0, age.Hours()/24)
	return float64(accessCount+1) / (1 + days*DecayRatePerDay)
}

// SaveMemory validates and inserts a new memory, returning the stored record.
func (db *DB) SaveMemory(ctx context.Context, p SaveParams) (*Memory, error) {
	if err := requireText("title", p.Title); err != nil {
		return nil, err
	}
	if err := requireText("content", p.Content); err != nil {
		return nil, err
	}
	if _, err := ParseMemoryType(string(p.Type)); err != nil {
		return nil, err
	}

	m := &Memory{
		ID:        uuid.NewString(),
		SessionID: p.SessionID,
		Project:   p.Project,
		Title:     p.Title,
		Type:      p.Type,
		Content:   p.Content,
		GitDiff:   p.GitDiff,
		CreatedAt: db.clock().Truncate(time.Millisecond),
		Status:    StatusActive,
		Scope:     ScopeProject,
	}

	err := db.withLock(func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT INTO memories (memory_id, session_id, project, title, type, content, git_diff, created_at)
			VALUES (?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, NULLIF(?, ''), ?)
		`, m.ID, m.SessionID, m.Project, m.Title, string(m.Type), m.Content, m.GitDiff, toMillis(m.CreatedAt))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save memory: %w", err)
	}
	return m, nil
}

// GetMemory returns a memory by id, or nil if none exists. A hit counts as an access.
func (db *DB) GetMemory(ctx context.Context, id string) (*Memory, error) {
	var found *Memory
	err := db.withLock(func() error {
		row := db.conn.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories m WHERE m.memory_id = ?`, id)
		m, err := scanMemory(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &m
		db.trackAccess(ctx, []string{m.ID})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return found, nil
}

// SearchMemories runs a phrase search over title and content, best match
// first. With a project, global memories are included too. Cold memories
// are never returned.
func (db *DB) SearchMemories(ctx context.Context, query, project string, limit int) ([]Memory, error) {
	if err := requireText("query", stripControls(query)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	var memories []Memory
	err := db.withLock(func() error {
		rows, err := db.conn.QueryContext(ctx, `
			SELECT `+memoryColumns+`
			FROM memories_fts fts
			JOIN memories m ON m.id = fts.rowid
			WHERE memories_fts MATCH ? AND `+visibleTo+`
			ORDER BY fts.rank, m.id
			LIMIT ?
		`, phraseQuery(query), project, project, limit)
		if err != nil {
			return err
		}
		memories, err = collectMemories(rows)
		if err != nil {
			return err
		}
		db.trackAccess(ctx, memoryIDs(memories))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	return memories, nil
}

// RecentMemories lists visible memories newest first.
func (db *DB) RecentMemories(ctx context.Context, project string, limit int) ([]Memory, error) {
	if limit <= 0 {
		return nil, nil
	}

	var memories []Memory
	err := db.withLock(func() error {
		rows, err := db.conn.QueryContext(ctx, `
			SELECT `+memoryColumns+`
			FROM memories m
			WHERE `+visibleTo+`
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT ?
		`, project, project, limit)
		if err != nil {
			return err
		}
		memories, err = collectMemories(rows)
		if err != nil {
			return err
		}
		db.trackAccess(ctx, memoryIDs(memories))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recent memories: %w", err)
	}
	return memories, nil
}

// RecentAutoMemories lists auto-captured memories newest first, regardless
// of project, scope or status. Reads here are analysis, not access.
func (db *DB) RecentAutoMemories(ctx context.Context, limit int) ([]Memory, error) {
	if limit <= 0 {
		return nil, nil
	}

	var memories []Memory
	err := db.withLock(func() error {
		rows, err := db.conn.QueryContext(ctx, `
			SELECT `+memoryColumns+`
			FROM memories m
			WHERE m.type = 'auto'
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT ?
		`, limit)
		if err != nil {
			return err
		}
		memories, err = collectMemories(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recent auto memories: %w", err)
	}
	return memories, nil
}

// DeleteMemory hard-deletes a memory. Returns false if it did not exist.
func (db *DB) DeleteMemory(ctx context.Context, id string) (bool, error) {
	var n int64
	err := db.withLock(func() error {
		result, err := db.conn.ExecContext(ctx, `DELETE FROM memories WHERE memory_id = ?`, id)
		if err != nil {
			return err
		}
		n, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	return n > 0, nil
}

// PromoteMemory makes a memory visible from every project.
func (db *DB) PromoteMemory(ctx context.Context, id string) (bool, error) {
	return db.setScope(ctx, id, ScopeGlobal)
}

// DemoteMemory returns a memory to its own project's scope.
func (db *DB) DemoteMemory(ctx context.Context, id string) (bool, error) {
	return db.setScope(ctx, id, ScopeProject)
}

func (db *DB) setScope(ctx context.Context, id string, scope MemoryScope) (bool, error) {
	var n int64
	err := db.withLock(func() error {
		result, err := db.conn.ExecContext(ctx, `UPDATE memories SET scope = ? WHERE memory_id = ?`, string(scope), id)
		if err != nil {
			return err
		}
		n, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("set scope %s: %w", scope, err)
	}
	return n > 0, nil
}

// Decay marks every active memory whose retention score is below threshold
// as cold and returns how many changed. A dry run returns the count a live
// run would change, without writing.
func (db *DB) Decay(ctx context.Context, threshold float64, dryRun bool) (int64, error) {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold < 0 {
		return 0, &ValidationError{Field: "threshold", Reason: "must be a non-negative number"}
	}

	now := toMillis(db.clock())
	var n int64
	err := db.withLock(func() error {
		if dryRun {
			return db.conn.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM memories m
				WHERE m.status = 'active' AND `+retentionScore+` < ?
			`, now, threshold).Scan(&n)
		}
		result, err := db.conn.ExecContext(ctx, `
			UPDATE memories AS m SET status = 'cold'
			WHERE m.status = 'active' AND `+retentionScore+` < ?
		`, now, threshold)
		if err != nil {
			return err
		}
		n, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("decay: %w", err)
	}
	if !dryRun && n > 0 {
		db.log.Info().Int64("count", n).Float64("threshold", threshold).Msg("memories marked cold")
	}
	return n, nil
}

// trackAccess bumps access counters for ids in one transaction. Failures
// are logged and swallowed; callers hold the lock.
func (db *DB) trackAccess(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := db.touchMemories(ctx, ids); err != nil {
		db.log.Warn().Err(err).Int("count", len(ids)).Msg("access tracking failed")
	}
}

func (db *DB) touchMemories(ctx context.Context, ids []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	args := make([]any, 0, len(ids)+1)
	args = append(args, toMillis(db.clock()))
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE memories SET access_count = access_count + 1, last_accessed_at = ?
		WHERE memory_id IN (`+placeholders(len(ids))+`)
	`, args...); err != nil {
		return fmt.Errorf("update access: %w", err)
	}
	return tx.Commit()
}

func collectMemories(rows *sql.Rows) ([]Memory, error) {
	defer rows.Close()
	var memories []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func scanMemory(row scanner) (Memory, error) {
	var m Memory
	var sessionID, project, gitDiff sql.NullString
	var memType, status, scope string
	var createdAt int64
	var lastAccessed sql.NullInt64

	err := row.Scan(&m.ID, &sessionID, &project, &m.Title, &memType, &m.Content, &gitDiff,
		&createdAt, &m.AccessCount, &lastAccessed, &status, &scope)
	if err != nil {
		return m, err
	}

	if m.Type, err = ParseMemoryType(memType); err != nil {
		return m, fmt.Errorf("memory %s: %w", m.ID, err)
	}
	if m.Status, err = ParseMemoryStatus(status); err != nil {
		return m, fmt.Errorf("memory %s: %w", m.ID, err)
	}
	if m.Scope, err = ParseMemoryScope(scope); err != nil {
		return m, fmt.Errorf("memory %s: %w", m.ID, err)
	}

	m.SessionID = nullString(sessionID)
	m.Project = nullString(project)
	m.GitDiff = nullString(gitDiff)
	m.CreatedAt = fromMillis(createdAt)
	if lastAccessed.Valid {
		t := fromMillis(lastAccessed.Int64)
		m.LastAccessedAt = &t
	}
	return m, nil
}

func memoryIDs(memories []Memory) []string {
	ids := make([]string, len(memories))
	for i, m := range memories {
		ids[i] = m.ID
	}
	return ids
}
