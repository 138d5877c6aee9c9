package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// FileName is the SQLite file created under the data directory.
const FileName = "ecoscan.db"

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool creates a new database connection pool
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// NewDB opens (creating if needed) the database under dataDir.
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return Open(filepath.Join(dataDir, FileName))
}

// Open opens the SQLite database at path, runs migrations and prepares
// statements.
func Open(path string) (*DB, error) {
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite serialises writers; a small pool avoids lock contention.
	pool := NewConnectionPool(db, 4, 2, 30*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := database.initPreparedStatements(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized",
		"path", path,
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns)

	return database, nil
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS scan_history (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			eco_score INTEGER NOT NULL CHECK (eco_score BETWEEN 0 AND 100),
			packaging_score INTEGER NOT NULL CHECK (packaging_score BETWEEN 0 AND 100),
			carbon_score INTEGER NOT NULL CHECK (carbon_score BETWEEN 0 AND 100),
			ethics_score INTEGER NOT NULL CHECK (ethics_score BETWEEN 0 AND 100),
			scan_date INTEGER NOT NULL, -- unix nanoseconds
			decision TEXT NOT NULL,
			packaging_type TEXT NOT NULL,
			certifications TEXT NOT NULL, -- JSON array
			materials TEXT NOT NULL, -- JSON array
			is_local BOOLEAN NOT NULL DEFAULT FALSE,
			region TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS impact_metrics (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			co2_saved REAL NOT NULL DEFAULT 0,
			plastic_saved REAL NOT NULL DEFAULT 0,
			total_scans INTEGER NOT NULL DEFAULT 0,
			good_decisions INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		)`,

		`INSERT OR IGNORE INTO impact_metrics (id, updated_at) VALUES (1, CURRENT_TIMESTAMP)`,

		`CREATE INDEX IF NOT EXISTS idx_scan_history_scan_date ON scan_history(scan_date DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_history_decision ON scan_history(decision)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_history_product ON scan_history(product_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

const scanColumns = `id, product_id, product_name, brand, category, image_url,
	eco_score, packaging_score, carbon_score, ethics_score, scan_date, decision,
	packaging_type, certifications, materials, is_local, region`

// initPreparedStatements initializes frequently used prepared statements
func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		stmtInsertScan: `INSERT INTO scan_history (` + scanColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,

		stmtGetScan: `SELECT ` + scanColumns + ` FROM scan_history WHERE id = ?`,

		stmtListScans: `SELECT ` + scanColumns + ` FROM scan_history ORDER BY scan_date DESC`,

		stmtListScansByDecision: `SELECT ` + scanColumns + ` FROM scan_history
			WHERE decision = ? ORDER BY scan_date DESC`,

		stmtDeleteScan: `DELETE FROM scan_history WHERE id = ?`,

		stmtGetImpact: `SELECT co2_saved, plastic_saved, total_scans, good_decisions
			FROM impact_metrics WHERE id = 1`,

		stmtUpdateImpact: `UPDATE impact_metrics
			SET co2_saved = ?, plastic_saved = ?, total_scans = ?, good_decisions = ?, updated_at = ?
			WHERE id = 1`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt

		slog.Debug("Prepared statement initialized", "name", name)
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// HealthCheck pings the database.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the database connection and prepared statements
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
