package store

import (
	"context"
	"fmt"
)

// TopProjectsLimit bounds the project ranking in GainStats.
const TopProjectsLimit = 5

// Stats is a snapshot of store-wide counts.
type Stats struct {
	MemoryCount  int64 `json:"memory_count"`
	ActiveCount  int64 `json:"active_count"`
	ColdCount    int64 `json:"cold_count"`
	ProjectCount int64 `json:"project_count"`
	SessionCount int64 `json:"session_count"`
	FileCount    int64 `json:"file_count"`
	DBSizeBytes  int64 `json:"db_size_bytes"`
}

// Stats returns memory, session and file counts plus the on-disk size.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := db.withLock(func() error {
		return db.conn.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM memories),
				(SELECT COUNT(*) FROM memories WHERE status = 'active'),
				(SELECT COUNT(*) FROM memories WHERE status = 'cold'),
				(SELECT COUNT(DISTINCT project) FROM memories WHERE project IS NOT NULL),
				(SELECT COUNT(*) FROM sessions),
				(SELECT COUNT(*) FROM indexed_files),
				(SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size())
		`).Scan(&s.MemoryCount, &s.ActiveCount, &s.ColdCount, &s.ProjectCount,
			&s.SessionCount, &s.FileCount, &s.DBSizeBytes)
	})
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &s, nil
}

// ProjectUsage is one row of the token usage ranking.
type ProjectUsage struct {
	Project     string `json:"project"`
	Sessions    int64  `json:"sessions"`
	TotalTokens int64  `json:"total_tokens"`
}

// GainStats rolls up transcript analytics across sessions that have them.
type GainStats struct {
	SessionCount       int64          `json:"session_count"`
	TotalSecs          int64          `json:"total_secs"`
	TotalInput         int64          `json:"total_input_tokens"`
	TotalOutput        int64          `json:"total_output_tokens"`
	TotalCacheRead     int64          `json:"total_cache_read_tokens"`
	TotalCacheCreation int64          `json:"total_cache_creation_tokens"`
	AvgTurns           float64        `json:"avg_turns_per_session"`
	AvgSecs            float64        `json:"avg_session_duration_secs"`
	TopProjects        []ProjectUsage `json:"top_projects"`
}

// CacheEfficiencyPct is the share of prompt tokens served from cache, in
// percent. Zero when no prompt tokens were recorded.
func (g *GainStats) CacheEfficiencyPct() float64 {
	denom := g.TotalInput + g.TotalCacheRead + g.TotalCacheCreation
	if denom == 0 {
		return 0
	}
	return float64(g.TotalCacheRead) / float64(denom) * 100
}

// GainStats aggregates session analytics and ranks projects by
// input + output + cache-read tokens. Cache creation is not ranked.
func (db *DB) GainStats(ctx context.Context) (*GainStats, error) {
	g := GainStats{TopProjects: []ProjectUsage{}}
	err := db.withLock(func() error {
		err := db.conn.QueryRowContext(ctx, `
			SELECT COUNT(*),
			       COALESCE(SUM(duration_secs), 0),
			       COALESCE(SUM(input_tokens), 0),
			       COALESCE(SUM(output_tokens), 0),
			       COALESCE(SUM(cache_read_tokens), 0),
			       COALESCE(SUM(cache_creation_tokens), 0),
			       COALESCE(AVG(turn_count), 0.0),
			       COALESCE(AVG(duration_secs), 0.0)
			FROM sessions WHERE analytics_at IS NOT NULL
		`).Scan(&g.SessionCount, &g.TotalSecs, &g.TotalInput, &g.TotalOutput,
			&g.TotalCacheRead, &g.TotalCacheCreation, &g.AvgTurns, &g.AvgSecs)
		if err != nil {
			return fmt.Errorf("totals: %w", err)
		}

		rows, err := db.conn.QueryContext(ctx, `
			SELECT project, COUNT(*), SUM(input_tokens + output_tokens + cache_read_tokens) AS total
			FROM sessions
			WHERE analytics_at IS NOT NULL AND project IS NOT NULL
			GROUP BY project
			ORDER BY total DESC, project
			LIMIT ?
		`, TopProjectsLimit)
		if err != nil {
			return fmt.Errorf("top projects: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var p ProjectUsage
			if err := rows.Scan(&p.Project, &p.Sessions, &p.TotalTokens); err != nil {
				return fmt.Errorf("scan project usage: %w", err)
			}
			g.TopProjects = append(g.TopProjects, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("gain stats: %w", err)
	}
	return &g, nil
}
