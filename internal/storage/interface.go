// Package storage defines the persistence interface for workflows, steps and
// user tokens, with pluggable backends registered by type.
package storage

import (
	"context"
	"time"

	"workflow-engine/internal/workflow"
)

// Config selects and configures a storage backend.
type Config struct {
	// Type is the backend identifier ("sqlite" or "postgres")
	Type string
	// Path is the database file for sqlite
	Path string
	// DSN is the connection string for postgres
	DSN string
}

// TokenRecord is a stored OAuth credential for (user, provider).
type TokenRecord struct {
	UserID       int64
	Provider     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// Expired reports whether the access token is past its expiry (with a small
// buffer so a token does not die mid-request).
func (t *TokenRecord) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(30 * time.Second).Before(t.ExpiresAt)
}

// Storage is the persistence contract consumed by the engine, the webhook
// lifecycle manager and the timer scheduler.
type Storage interface {
	Close() error
	Health() error
	// Migrate creates or updates the schema
	Migrate() error

	// Workflows
	CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error
	GetWorkflow(ctx context.Context, id int64) (*workflow.Workflow, error)
	ListWorkflowsByUser(ctx context.Context, userID int64) ([]*workflow.Workflow, error)
	// ReplaceWorkflowSteps swaps a workflow's step list atomically
	ReplaceWorkflowSteps(ctx context.Context, workflowID int64, steps []workflow.Step) error
	SetWorkflowActive(ctx context.Context, id int64, active bool) error
	DeleteWorkflow(ctx context.Context, id int64) error
	// UpdateStepParams rewrites one step's params in place, leaving the
	// step list untouched
	UpdateStepParams(ctx context.Context, stepID int64, params workflow.Params) error

	// MatchingWorkflows returns active workflows containing at least one
	// action step for (service, event), steps included. Correlation
	// narrowing happens in the dispatcher against this snapshot.
	MatchingWorkflows(ctx context.Context, service, event string) ([]*workflow.Workflow, error)
	// ActiveTimerSteps returns action steps of the given service belonging
	// to active workflows
	ActiveTimerSteps(ctx context.Context, service string) ([]workflow.Step, error)

	// Tokens
	GetUserToken(ctx context.Context, userID int64, provider string) (*TokenRecord, error)
	SaveUserToken(ctx context.Context, rec *TokenRecord) error
}
