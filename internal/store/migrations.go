package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "memories: session notes with full-text index",
		SQL: `
CREATE TABLE memories (
    id               INTEGER PRIMARY KEY,
    memory_id        TEXT NOT NULL UNIQUE,
    session_id       TEXT,
    project          TEXT,
    title            TEXT NOT NULL,
    type             TEXT NOT NULL CHECK (type IN ('auto', 'manual', 'pattern', 'decision')),
    content          TEXT NOT NULL,
    git_diff         TEXT,
    created_at       INTEGER NOT NULL,

    -- Access tracking and decay
    access_count     INTEGER NOT NULL DEFAULT 0 CHECK (access_count >= 0),
    last_accessed_at INTEGER,
    status           TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'cold')),
    scope            TEXT NOT NULL DEFAULT 'project' CHECK (scope IN ('project', 'global'))
);

CREATE INDEX idx_memories_project ON memories(project);
CREATE INDEX idx_memories_created ON memories(created_at DESC);
CREATE INDEX idx_memories_status  ON memories(status, scope);
CREATE INDEX idx_memories_type    ON memories(type);

CREATE VIRTUAL TABLE memories_fts USING fts5(
    title,
    content,
    content='memories',
    content_rowid='id',
    tokenize='porter unicode61'
);

CREATE TRIGGER memories_fts_ai AFTER INSERT ON memories BEGIN
    INSERT INTO memories_fts(rowid, title, content) VALUES (new.id, new.title, new.content);
END;

CREATE TRIGGER memories_fts_ad AFTER DELETE ON memories BEGIN
    INSERT INTO memories_fts(memories_fts, rowid, title, content) VALUES ('delete', old.id, old.title, old.content);
END;

CREATE TRIGGER memories_fts_au AFTER UPDATE OF title, content ON memories BEGIN
    INSERT INTO memories_fts(memories_fts, rowid, title, content) VALUES ('delete', old.id, old.title, old.content);
    INSERT INTO memories_fts(rowid, title, content) VALUES (new.id, new.title, new.content);
END;
`,
	},
	{
		Version:     2,
		Description: "sessions: session tracking",
		SQL: `
CREATE TABLE sessions (
    id          INTEGER PRIMARY KEY,
    session_id  TEXT NOT NULL UNIQUE,
    project     TEXT,
    goal        TEXT,
    started_at  INTEGER NOT NULL,
    ended_at    INTEGER
);

CREATE INDEX idx_sessions_started_at ON sessions(started_at DESC);
CREATE INDEX idx_sessions_project    ON sessions(project);
`,
	},
	{
		Version:     3,
		Description: "indexed_files: documentation snapshots with full-text index",
		SQL: `
CREATE TABLE indexed_files (
    id              INTEGER PRIMARY KEY,
    file_id         TEXT NOT NULL UNIQUE,
    source_path     TEXT NOT NULL UNIQUE,
    project_path    TEXT,
    project_name    TEXT NOT NULL,
    title           TEXT NOT NULL,
    content         TEXT NOT NULL,
    indexed_at      INTEGER NOT NULL,
    file_mtime_secs INTEGER NOT NULL
);

CREATE INDEX idx_files_project_path ON indexed_files(project_path);
CREATE INDEX idx_files_project_name ON indexed_files(project_name);

CREATE VIRTUAL TABLE indexed_files_fts USING fts5(
    title,
    content,
    content='indexed_files',
    content_rowid='id',
    tokenize='porter unicode61'
);

CREATE TRIGGER indexed_files_fts_ai AFTER INSERT ON indexed_files BEGIN
    INSERT INTO indexed_files_fts(rowid, title, content) VALUES (new.id, new.title, new.content);
END;

CREATE TRIGGER indexed_files_fts_ad AFTER DELETE ON indexed_files BEGIN
    INSERT INTO indexed_files_fts(indexed_files_fts, rowid, title, content) VALUES ('delete', old.id, old.title, old.content);
END;

CREATE TRIGGER indexed_files_fts_au AFTER UPDATE OF title, content ON indexed_files BEGIN
    INSERT INTO indexed_files_fts(indexed_files_fts, rowid, title, content) VALUES ('delete', old.id, old.title, old.content);
    INSERT INTO indexed_files_fts(rowid, title, content) VALUES (new.id, new.title, new.content);
END;
`,
	},
	{
		Version:     4,
		Description: "sessions: transcript analytics",
		SQL: `
ALTER TABLE sessions ADD COLUMN turn_count            INTEGER NOT NULL DEFAULT 0;
ALTER TABLE sessions ADD COLUMN duration_secs         INTEGER NOT NULL DEFAULT 0;
ALTER TABLE sessions ADD COLUMN input_tokens          INTEGER NOT NULL DEFAULT 0;
ALTER TABLE sessions ADD COLUMN output_tokens         INTEGER NOT NULL DEFAULT 0;
ALTER TABLE sessions ADD COLUMN cache_read_tokens     INTEGER NOT NULL DEFAULT 0;
ALTER TABLE sessions ADD COLUMN cache_creation_tokens INTEGER NOT NULL DEFAULT 0;
ALTER TABLE sessions ADD COLUMN analytics_at          INTEGER;
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.conn.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
		db.log.Debug().Int("version", m.Version).Str("description", m.Description).Msg("applied migration")
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.withLock(func() error {
		return db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	})
	return version, err
}
