package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// busyTimeoutMs bounds how long a statement waits on another process's
// write lock before failing with SQLITE_BUSY.
const busyTimeoutMs = 5000

// DB owns the single connection to the mem SQLite database. Every
// operation holds mu for its whole duration.
type DB struct {
	conn *sql.DB
	Path string

	mu       sync.Mutex
	poisoned atomic.Bool

	log zerolog.Logger
	now func() time.Time
}

// Option configures a DB at open time.
type Option func(*DB)

// WithLogger sets the logger used for best-effort failures (access tracking).
func WithLogger(l zerolog.Logger) Option {
	return func(db *DB) { db.log = l }
}

func withClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// DefaultDBPath returns the default database path: ~/.mem/mem.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".mem", "mem.db"), nil
}

// Open opens (or creates) the SQLite database at the given path,
// configures pragmas, and runs migrations.
func Open(path string, opts ...Option) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return open(fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, busyTimeoutMs), path, opts)
}

// OpenMemory opens an in-memory SQLite database for testing.
func OpenMemory(opts ...Option) (*DB, error) {
	return open(":memory:", ":memory:", opts)
}

func open(dsn, path string, opts []Option) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection for the life of the handle. This is also what keeps a
	// :memory: database alive between statements.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	db := &DB{
		conn: sqlDB,
		Path: path,
		log:  zerolog.Nop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *DB) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA mmap_size=268435456", // 256MB
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMs),
	}
	for _, p := range pragmas {
		if _, err := db.conn.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

// withLock runs fn while holding the connection lock. A panic inside fn
// poisons the handle: the lock is released, the panic continues, and every
// later call returns ErrInconsistentState.
func (db *DB) withLock(fn func() error) error {
	if db.poisoned.Load() {
		return ErrInconsistentState
	}
	db.mu.Lock()
	defer func() {
		if r := recover(); r != nil {
			db.poisoned.Store(true)
			db.mu.Unlock()
			panic(r)
		}
		db.mu.Unlock()
	}()
	// A holder may have faulted while we waited.
	if db.poisoned.Load() {
		return ErrInconsistentState
	}
	return fn()
}

// Ping verifies the connection is usable.
func (db *DB) Ping(ctx context.Context) error {
	return db.withLock(func() error {
		return db.conn.PingContext(ctx)
	})
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

func (db *DB) clock() time.Time {
	return db.now().UTC()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
