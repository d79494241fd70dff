package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// UpsertOutcome reports what UpsertFile did.
type UpsertOutcome int

const (
	UpsertNew UpsertOutcome = iota
	UpsertUpdated
	UpsertUnchanged
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertNew:
		return "new"
	case UpsertUpdated:
		return "updated"
	case UpsertUnchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("UpsertOutcome(%d)", int(o))
	}
}

// UpsertFileParams describes one document snapshot.
type UpsertFileParams struct {
	SourcePath  string
	ProjectPath string
	ProjectName string
	Title       string
	Content     string
	MtimeSecs   int64
}

const fileColumns = `f.file_id, f.source_path, f.project_path, f.project_name, f.title, f.content,
	f.indexed_at, f.file_mtime_secs`

// UpsertFile stores a document keyed by source path. A stored row with the
// same mtime is left untouched; content is never compared. Replacing a row
// rewrites every field, and the FTS triggers drop the old terms.
func (db *DB) UpsertFile(ctx context.Context, p UpsertFileParams) (UpsertOutcome, error) {
	if err := requireText("source_path", p.SourcePath); err != nil {
		return 0, err
	}
	if err := requireText("project_name", p.ProjectName); err != nil {
		return 0, err
	}

	now := toMillis(db.clock())
	var outcome UpsertOutcome
	err := db.withLock(func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		var storedMtime int64
		err = tx.QueryRowContext(ctx,
			`SELECT file_mtime_secs FROM indexed_files WHERE source_path = ?`, p.SourcePath,
		).Scan(&storedMtime)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx, `
				INSERT INTO indexed_files (file_id, source_path, project_path, project_name, title, content, indexed_at, file_mtime_secs)
				VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?)
			`, ulid.Make().String(), p.SourcePath, p.ProjectPath, p.ProjectName, p.Title, p.Content, now, p.MtimeSecs)
			if err != nil {
				return fmt.Errorf("insert: %w", err)
			}
			outcome = UpsertNew
		case err != nil:
			return fmt.Errorf("lookup: %w", err)
		case storedMtime == p.MtimeSecs:
			outcome = UpsertUnchanged
			return nil
		default:
			_, err = tx.ExecContext(ctx, `
				UPDATE indexed_files
				SET project_path = NULLIF(?, ''), project_name = ?, title = ?, content = ?,
				    indexed_at = ?, file_mtime_secs = ?
				WHERE source_path = ?
			`, p.ProjectPath, p.ProjectName, p.Title, p.Content, now, p.MtimeSecs, p.SourcePath)
			if err != nil {
				return fmt.Errorf("update: %w", err)
			}
			outcome = UpsertUpdated
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("upsert file %s: %w", p.SourcePath, err)
	}
	return outcome, nil
}

// SearchFiles runs a phrase search over indexed documents. A project
// matches either project_path or project_name.
func (db *DB) SearchFiles(ctx context.Context, query, project string, limit int) ([]IndexedFile, error) {
	if err := requireText("query", stripControls(query)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	var files []IndexedFile
	err := db.withLock(func() error {
		rows, err := db.conn.QueryContext(ctx, `
			SELECT `+fileColumns+`
			FROM indexed_files_fts fts
			JOIN indexed_files f ON f.id = fts.rowid
			WHERE indexed_files_fts MATCH ?
			  AND (? = '' OR f.project_path = ? OR f.project_name = ?)
			ORDER BY fts.rank, f.id
			LIMIT ?
		`, phraseQuery(query), project, project, project, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			f, err := scanFile(rows)
			if err != nil {
				return err
			}
			files = append(files, f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("search files: %w", err)
	}
	return files, nil
}

// GetFile returns the snapshot stored for a source path, or nil.
func (db *DB) GetFile(ctx context.Context, sourcePath string) (*IndexedFile, error) {
	var found *IndexedFile
	err := db.withLock(func() error {
		row := db.conn.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM indexed_files f WHERE f.source_path = ?`, sourcePath)
		f, err := scanFile(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &f
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return found, nil
}

func scanFile(row scanner) (IndexedFile, error) {
	var f IndexedFile
	var projectPath sql.NullString
	var indexedAt int64
	if err := row.Scan(&f.ID, &f.SourcePath, &projectPath, &f.ProjectName, &f.Title, &f.Content,
		&indexedAt, &f.MtimeSecs); err != nil {
		return f, err
	}
	f.ProjectPath = nullString(projectPath)
	f.IndexedAt = fromMillis(indexedAt)
	return f, nil
}

// FileMtime converts a modification time to the stored change marker.
func FileMtime(t time.Time) int64 {
	return t.Unix()
}
