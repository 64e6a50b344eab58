package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"

	"github.com/medflow/ocr-service/internal/common"
)

const memoryDSN = ":memory:"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS batches (
		task_id         TEXT PRIMARY KEY,
		status          TEXT NOT NULL,
		folder_path     TEXT NOT NULL,
		device_type     TEXT NOT NULL,
		total_files     INTEGER NOT NULL DEFAULT 0,
		processed_files INTEGER NOT NULL DEFAULT 0,
		unique_patients INTEGER NOT NULL DEFAULT 0,
		errors          INTEGER NOT NULL DEFAULT 0,
		current_file    TEXT NOT NULL DEFAULT '',
		message         TEXT NOT NULL DEFAULT '',
		created_at      INTEGER NOT NULL,
		started_at      INTEGER,
		completed_at    INTEGER,
		expires_at      INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_expires_at ON batches(expires_at)`,
	`CREATE TABLE IF NOT EXISTS ocr_results (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id            TEXT,
		file_path          TEXT NOT NULL,
		file_name          TEXT NOT NULL,
		file_type          TEXT NOT NULL,
		file_size          INTEGER NOT NULL,
		device_type        TEXT NOT NULL,
		ocr_text           TEXT NOT NULL DEFAULT '',
		ocr_confidence     REAL NOT NULL DEFAULT 0,
		extracted_info     TEXT,
		thumbnail_path     TEXT NOT NULL DEFAULT '',
		processed_at       INTEGER NOT NULL,
		processing_time_ms INTEGER NOT NULL,
		error              TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ocr_results_task_id ON ocr_results(task_id)`,
}

// Open opens (creating if needed) the SQLite store at path and applies the
// schema. ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string, logger *zap.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("repository.open", zap.String("path", path))

	dsn := path
	if path != memoryDSN {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, common.NewAppError(common.CodeRepository, "open sqlite", err)
	}
	// every :memory: connection is a separate database
	if path == memoryDSN {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		logger.Error("repository.migrate.failed", zap.Error(err))
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables if missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return common.NewAppError(common.CodeRepository, "apply schema", err)
		}
	}
	return nil
}

// Close closes the database, logging failures.
func Close(db *sql.DB, logger *zap.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("repository.close.failed", zap.Error(err))
	}
}

// HealthCheck pings the database within timeout.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return db.PingContext(ctx)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func dbErr(msg string, err error) error {
	return common.NewAppError(common.CodeRepository, msg, err)
}
