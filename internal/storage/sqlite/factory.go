// Package sqlite provides the embedded SQLite storage backend.
package sqlite

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"workflow-engine/internal/common/errors"
	"workflow-engine/internal/storage"
	"workflow-engine/internal/storage/sqladapter"
)

func init() {
	storage.RegisterFactory(&Factory{})
}

// Factory creates SQLite-backed storage.
type Factory struct{}

func (f *Factory) GetType() string {
	return "sqlite"
}

func (f *Factory) Create(config storage.Config) (storage.Storage, error) {
	path := config.Path
	if path == "" {
		path = "workflow-engine.db"
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.ConnectionError("open sqlite database", err)
	}
	// sqlite handles one writer at a time
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.ConnectionError("ping sqlite database", err)
	}

	return sqladapter.New(db, dialect{}), nil
}

type dialect struct{}

func (dialect) Name() string {
	return "sqlite"
}

// Rebind is a no-op, sqlite uses ? placeholders natively.
func (dialect) Rebind(query string) string {
	return query
}

func (dialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			visibility TEXT NOT NULL DEFAULT 'private',
			active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS workflow_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow_id INTEGER NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			step_order INTEGER NOT NULL,
			type TEXT NOT NULL,
			service TEXT NOT NULL,
			event TEXT NOT NULL,
			params TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_workflow ON workflow_steps(workflow_id)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_service_event ON workflow_steps(service, event)`,
		`CREATE TABLE IF NOT EXISTS user_tokens (
			user_id INTEGER NOT NULL,
			provider TEXT NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT,
			expires_at TIMESTAMP,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, provider)
		)`,
	}
}

func (dialect) InsertID(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
