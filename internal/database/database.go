package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a requested row does not exist or is not
// visible to the caller.
var ErrNotFound = errors.New("not found")

// Database wraps a *sql.DB providing higher-level helper methods for
// interacting with the application's persistent store. It is safe for
// concurrent use because the underlying *sql.DB is concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements for the hot read paths
	getUserByIDStmt       *sql.Stmt
	getUserByUsernameStmt *sql.Stmt
	incrementPlaysStmt    *sql.Stmt
	likeCountStmt         *sql.Stmt
}

// NewDatabase opens (or creates) a SQLite database at the provided path and
// ensures all required tables and indices exist. It also applies lightweight
// performance-oriented pragmas (WAL, cache sizing). Caller should Close() it
// when finished.
func NewDatabase(dbPath string) (*Database, error) {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - adjusted for SQLite
	conn.SetMaxOpenConns(5) // SQLite works better with fewer connections
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	// Enable WAL mode for better concurrency
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
		"PRAGMA foreign_keys=ON;", // Enable foreign key constraints
		"PRAGMA auto_vacuum=INCREMENTAL;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Database initialized successfully")
	return db, nil
}

// createTables creates tables and indices if they do not already exist, then
// executes any migrations. This is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	compositionsTable := `
	CREATE TABLE IF NOT EXISTS compositions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		equations TEXT NOT NULL,
		tempo INTEGER NOT NULL DEFAULT 120,
		wave_type TEXT NOT NULL DEFAULT 'sine',
		public BOOLEAN NOT NULL DEFAULT FALSE,
		play_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
	);`

	likesTable := `
	CREATE TABLE IF NOT EXISTS likes (
		composition_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (composition_id) REFERENCES compositions(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (composition_id, user_id)
	);`

	commentsTable := `
	CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		composition_id INTEGER NOT NULL,
		author_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (composition_id) REFERENCES compositions(id) ON DELETE CASCADE,
		FOREIGN KEY (author_id) REFERENCES users(id) ON DELETE CASCADE
	);`

	// Render jobs are persisted so job history survives restarts
	renderJobsTable := `
	CREATE TABLE IF NOT EXISTS render_jobs (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		composition_id INTEGER NOT NULL,
		title TEXT,
		loops INTEGER,
		status TEXT,
		progress INTEGER,
		error TEXT,
		output_path TEXT,
		created_at DATETIME,
		completed_at DATETIME
	);`

	// Create indices for better performance
	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_compositions_owner ON compositions(owner_id);",
		"CREATE INDEX IF NOT EXISTS idx_compositions_public ON compositions(public, created_at);", // Gallery feed
		"CREATE INDEX IF NOT EXISTS idx_likes_user ON likes(user_id);",
		"CREATE INDEX IF NOT EXISTS idx_likes_created ON likes(composition_id, created_at);", // Trending window
		"CREATE INDEX IF NOT EXISTS idx_comments_composition ON comments(composition_id, created_at);",
		"CREATE INDEX IF NOT EXISTS idx_render_jobs_user ON render_jobs(user_id);",
		"CREATE INDEX IF NOT EXISTS idx_render_jobs_status ON render_jobs(status);",
	}

	tables := []string{usersTable, compositionsTable, likesTable, commentsTable, renderJobsTable}
	for _, table := range tables {
		if _, err := db.conn.Exec(table); err != nil {
			return err
		}
	}

	for _, index := range indices {
		if _, err := db.conn.Exec(index); err != nil {
			return err
		}
	}

	// Run migrations
	if err := db.runMigrations(); err != nil {
		return err
	}

	return nil
}

// runMigrations performs incremental schema updates in-place. Each migration
// should be idempotent and safe to re-run; keep them lightweight.
func (db *Database) runMigrations() error {
	// Migration 1: Add play_count column to compositions if it doesn't exist
	// (early schemas stored compositions without it)
	var columnExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('compositions')
		WHERE name = 'play_count'`).Scan(&columnExists)

	if err != nil {
		return err
	}

	if !columnExists {
		_, err = db.conn.Exec("ALTER TABLE compositions ADD COLUMN play_count INTEGER NOT NULL DEFAULT 0")
		if err != nil {
			return err
		}
		db.logger.Info("Added play_count column to compositions table")
	}

	return nil
}

// prepareStatements prepares commonly used SQL statements for better performance
func (db *Database) prepareStatements() error {
	var err error

	db.getUserByIDStmt, err = db.conn.Prepare(`
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get user by ID statement: %w", err)
	}

	db.getUserByUsernameStmt, err = db.conn.Prepare(`
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users WHERE username = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get user by username statement: %w", err)
	}

	db.incrementPlaysStmt, err = db.conn.Prepare(`
		UPDATE compositions SET play_count = play_count + 1 WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare increment plays statement: %w", err)
	}

	db.likeCountStmt, err = db.conn.Prepare(`
		SELECT COUNT(*) FROM likes WHERE composition_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare like count statement: %w", err)
	}

	return nil
}

// Ping verifies the database connection is still alive.
func (db *Database) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection and prepared statements.
func (db *Database) Close() error {
	// Close prepared statements
	statements := []*sql.Stmt{
		db.getUserByIDStmt,
		db.getUserByUsernameStmt,
		db.incrementPlaysStmt,
		db.likeCountStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				db.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	// Close database connection
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
