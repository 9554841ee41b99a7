// Package sqladapter implements the storage interface on database/sql. The
// sqlite and postgres backends differ only in driver, placeholder style and
// id generation, captured by the Dialect interface.
package sqladapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"workflow-engine/internal/common/errors"
	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/storage"
	"workflow-engine/internal/workflow"
)

// Dialect captures the differences between supported SQL backends.
type Dialect interface {
	// Name returns the backend identifier
	Name() string
	// Rebind rewrites ?-style placeholders into the backend's style
	Rebind(query string) string
	// Schema returns the DDL statements run by Migrate
	Schema() []string
	// InsertID runs an INSERT and returns the generated row id
	InsertID(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (int64, error)
}

// Store implements storage.Storage on a database/sql handle.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  logging.Logger
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		logger:  logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "storage"}, logging.Field{Key: "backend", Value: dialect.Name()}),
	}
}

// DB exposes the underlying handle for backend-specific setup.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *Store) Migrate() error {
	for _, stmt := range s.dialect.Schema() {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.InternalError("schema migration failed", err)
		}
	}
	s.logger.Info("Schema migration complete")
	return nil
}

func (s *Store) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.ConnectionError("begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	id, err := s.dialect.InsertID(ctx, tx, s.dialect.Rebind(
		`INSERT INTO workflows (user_id, name, description, visibility, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		wf.UserID, wf.Name, wf.Description, string(wf.Visibility), wf.Active, now, now)
	if err != nil {
		return errors.InternalError("insert workflow", err)
	}
	wf.ID = id
	wf.CreatedAt = now
	wf.UpdatedAt = now

	if err := s.insertSteps(ctx, tx, wf.ID, wf.Steps); err != nil {
		return err
	}
	for i := range wf.Steps {
		wf.Steps[i].WorkflowID = wf.ID
	}

	return tx.Commit()
}

func (s *Store) insertSteps(ctx context.Context, tx *sql.Tx, workflowID int64, steps []workflow.Step) error {
	query := s.dialect.Rebind(
		`INSERT INTO workflow_steps (workflow_id, step_order, type, service, event, params, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)

	for i := range steps {
		params, err := marshalParams(steps[i].Params)
		if err != nil {
			return err
		}
		id, err := s.dialect.InsertID(ctx, tx, query,
			workflowID, steps[i].Order, string(steps[i].Type), steps[i].Service, steps[i].Event, params, time.Now().UTC())
		if err != nil {
			return errors.InternalError(fmt.Sprintf("insert step %d", steps[i].Order), err)
		}
		steps[i].ID = id
	}
	return nil
}

func (s *Store) GetWorkflow(ctx context.Context, id int64) (*workflow.Workflow, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT id, user_id, name, description, visibility, active, created_at, updated_at
		 FROM workflows WHERE id = ?`), id)

	wf, err := scanWorkflow(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError(fmt.Sprintf("workflow %d", id))
	}
	if err != nil {
		return nil, errors.InternalError("query workflow", err)
	}

	if err := s.loadSteps(ctx, []*workflow.Workflow{wf}); err != nil {
		return nil, err
	}
	return wf, nil
}

func (s *Store) ListWorkflowsByUser(ctx context.Context, userID int64) ([]*workflow.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		`SELECT id, user_id, name, description, visibility, active, created_at, updated_at
		 FROM workflows WHERE user_id = ? ORDER BY id`), userID)
	if err != nil {
		return nil, errors.InternalError("query workflows", err)
	}
	defer rows.Close()

	workflows, err := collectWorkflows(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadSteps(ctx, workflows); err != nil {
		return nil, err
	}
	return workflows, nil
}

func (s *Store) ReplaceWorkflowSteps(ctx context.Context, workflowID int64, steps []workflow.Step) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.ConnectionError("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.dialect.Rebind(
		`DELETE FROM workflow_steps WHERE workflow_id = ?`), workflowID); err != nil {
		return errors.InternalError("delete steps", err)
	}
	if err := s.insertSteps(ctx, tx, workflowID, steps); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.dialect.Rebind(
		`UPDATE workflows SET updated_at = ? WHERE id = ?`), time.Now().UTC(), workflowID); err != nil {
		return errors.InternalError("touch workflow", err)
	}

	return tx.Commit()
}

func (s *Store) SetWorkflowActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`UPDATE workflows SET active = ?, updated_at = ? WHERE id = ?`), active, time.Now().UTC(), id)
	if err != nil {
		return errors.InternalError("update workflow", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundError(fmt.Sprintf("workflow %d", id))
	}
	return nil
}

func (s *Store) DeleteWorkflow(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.ConnectionError("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.dialect.Rebind(
		`DELETE FROM workflow_steps WHERE workflow_id = ?`), id); err != nil {
		return errors.InternalError("delete steps", err)
	}
	if _, err := tx.ExecContext(ctx, s.dialect.Rebind(
		`DELETE FROM workflows WHERE id = ?`), id); err != nil {
		return errors.InternalError("delete workflow", err)
	}

	return tx.Commit()
}

func (s *Store) UpdateStepParams(ctx context.Context, stepID int64, params workflow.Params) error {
	data, err := marshalParams(params)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`UPDATE workflow_steps SET params = ? WHERE id = ?`), data, stepID)
	if err != nil {
		return errors.InternalError("update step params", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundError(fmt.Sprintf("step %d", stepID))
	}
	return nil
}

func (s *Store) MatchingWorkflows(ctx context.Context, service, event string) ([]*workflow.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		`SELECT DISTINCT w.id, w.user_id, w.name, w.description, w.visibility, w.active, w.created_at, w.updated_at
		 FROM workflows w
		 JOIN workflow_steps s ON s.workflow_id = w.id
		 WHERE w.active = ? AND s.type = ? AND s.service = ? AND s.event = ?
		 ORDER BY w.id`), true, string(workflow.StepTypeAction), service, event)
	if err != nil {
		return nil, errors.InternalError("query matching workflows", err)
	}
	defer rows.Close()

	workflows, err := collectWorkflows(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadSteps(ctx, workflows); err != nil {
		return nil, err
	}
	return workflows, nil
}

func (s *Store) ActiveTimerSteps(ctx context.Context, service string) ([]workflow.Step, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		`SELECT s.id, s.workflow_id, s.step_order, s.type, s.service, s.event, s.params
		 FROM workflow_steps s
		 JOIN workflows w ON w.id = s.workflow_id
		 WHERE w.active = ? AND s.type = ? AND s.service = ?
		 ORDER BY s.id`), true, string(workflow.StepTypeAction), service)
	if err != nil {
		return nil, errors.InternalError("query timer steps", err)
	}
	defer rows.Close()

	var steps []workflow.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func (s *Store) GetUserToken(ctx context.Context, userID int64, provider string) (*storage.TokenRecord, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT user_id, provider, access_token, refresh_token, expires_at, updated_at
		 FROM user_tokens WHERE user_id = ? AND provider = ?`), userID, provider)

	rec := &storage.TokenRecord{}
	var expiresAt sql.NullTime
	err := row.Scan(&rec.UserID, &rec.Provider, &rec.AccessToken, &rec.RefreshToken, &expiresAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError(fmt.Sprintf("token for user %d provider %s", userID, provider))
	}
	if err != nil {
		return nil, errors.InternalError("query token", err)
	}
	if expiresAt.Valid {
		rec.ExpiresAt = expiresAt.Time
	}
	return rec, nil
}

func (s *Store) SaveUserToken(ctx context.Context, rec *storage.TokenRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`INSERT INTO user_tokens (user_id, provider, access_token, refresh_token, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, provider) DO UPDATE SET
		   access_token = excluded.access_token,
		   refresh_token = excluded.refresh_token,
		   expires_at = excluded.expires_at,
		   updated_at = excluded.updated_at`),
		rec.UserID, rec.Provider, rec.AccessToken, rec.RefreshToken, nullTime(rec.ExpiresAt), rec.UpdatedAt)
	if err != nil {
		return errors.InternalError("save token", err)
	}
	return nil
}

func (s *Store) loadSteps(ctx context.Context, workflows []*workflow.Workflow) error {
	byID := make(map[int64]*workflow.Workflow, len(workflows))
	ids := make([]string, 0, len(workflows))
	args := make([]interface{}, 0, len(workflows))
	for _, wf := range workflows {
		byID[wf.ID] = wf
		ids = append(ids, "?")
		args = append(args, wf.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	query := s.dialect.Rebind(fmt.Sprintf(
		`SELECT id, workflow_id, step_order, type, service, event, params
		 FROM workflow_steps WHERE workflow_id IN (%s) ORDER BY workflow_id, step_order`,
		strings.Join(ids, ", ")))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.InternalError("query steps", err)
	}
	defer rows.Close()

	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return err
		}
		if wf, ok := byID[step.WorkflowID]; ok {
			wf.Steps = append(wf.Steps, step)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkflow(row rowScanner) (*workflow.Workflow, error) {
	wf := &workflow.Workflow{}
	var description sql.NullString
	var visibility string
	err := row.Scan(&wf.ID, &wf.UserID, &wf.Name, &description, &visibility, &wf.Active, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return nil, err
	}
	wf.Description = description.String
	wf.Visibility = workflow.Visibility(visibility)
	return wf, nil
}

func collectWorkflows(rows *sql.Rows) ([]*workflow.Workflow, error) {
	var workflows []*workflow.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, errors.InternalError("scan workflow", err)
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

func scanStep(row rowScanner) (workflow.Step, error) {
	var step workflow.Step
	var stepType string
	var params sql.NullString
	if err := row.Scan(&step.ID, &step.WorkflowID, &step.Order, &stepType, &step.Service, &step.Event, &params); err != nil {
		return step, errors.InternalError("scan step", err)
	}
	step.Type = workflow.StepType(stepType)
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &step.Params); err != nil {
			return step, errors.InternalError(fmt.Sprintf("decode params for step %d", step.ID), err)
		}
	}
	return step, nil
}

func marshalParams(params workflow.Params) (interface{}, error) {
	if params == nil {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, errors.InternalError("encode step params", err)
	}
	return string(data), nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
