// Package postgres provides the PostgreSQL storage backend using the pgx
// stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"workflow-engine/internal/common/errors"
	"workflow-engine/internal/storage"
	"workflow-engine/internal/storage/sqladapter"
)

func init() {
	storage.RegisterFactory(&Factory{})
}

// Factory creates PostgreSQL-backed storage.
type Factory struct{}

func (f *Factory) GetType() string {
	return "postgres"
}

func (f *Factory) Create(config storage.Config) (storage.Storage, error) {
	if config.DSN == "" {
		return nil, errors.ConfigError("postgres storage requires a DSN")
	}

	db, err := sql.Open("pgx", config.DSN)
	if err != nil {
		return nil, errors.ConnectionError("open postgres connection", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.ConnectionError("ping postgres", err)
	}

	return sqladapter.New(db, dialect{}), nil
}

type dialect struct{}

func (dialect) Name() string {
	return "postgres"
}

// Rebind rewrites ? placeholders into $1, $2, ... positional form.
func (dialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (dialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			visibility TEXT NOT NULL DEFAULT 'private',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS workflow_steps (
			id BIGSERIAL PRIMARY KEY,
			workflow_id BIGINT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			step_order INTEGER NOT NULL,
			type TEXT NOT NULL,
			service TEXT NOT NULL,
			event TEXT NOT NULL,
			params TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_workflow ON workflow_steps(workflow_id)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_service_event ON workflow_steps(service, event)`,
		`CREATE TABLE IF NOT EXISTS user_tokens (
			user_id BIGINT NOT NULL,
			provider TEXT NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT,
			expires_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, provider)
		)`,
	}
}

func (dialect) InsertID(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id)
	return id, err
}
