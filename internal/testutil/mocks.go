package testutil

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"workflow-engine/internal/common/errors"
	"workflow-engine/internal/storage"
	"workflow-engine/internal/workflow"
)

// MockStorage implements storage.Storage for testing
type MockStorage struct {
	mu         sync.RWMutex
	workflows  map[int64]*workflow.Workflow
	tokens     map[string]*storage.TokenRecord
	nextWfID   int64
	nextStepID int64

	// Control error injection
	ErrorOnMethod map[string]error
}

// NewMockStorage creates a new mock storage instance
func NewMockStorage() *MockStorage {
	return &MockStorage{
		workflows:     make(map[int64]*workflow.Workflow),
		tokens:        make(map[string]*storage.TokenRecord),
		nextWfID:      1,
		nextStepID:    1,
		ErrorOnMethod: make(map[string]error),
	}
}

func (m *MockStorage) Close() error {
	return m.ErrorOnMethod["Close"]
}

func (m *MockStorage) Health() error {
	return m.ErrorOnMethod["Health"]
}

func (m *MockStorage) Migrate() error {
	return m.ErrorOnMethod["Migrate"]
}

func (m *MockStorage) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	if err := m.ErrorOnMethod["CreateWorkflow"]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	wf.ID = m.nextWfID
	m.nextWfID++
	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now
	for i := range wf.Steps {
		wf.Steps[i].ID = m.nextStepID
		wf.Steps[i].WorkflowID = wf.ID
		m.nextStepID++
	}
	m.workflows[wf.ID] = cloneWorkflow(wf)
	return nil
}

func (m *MockStorage) GetWorkflow(ctx context.Context, id int64) (*workflow.Workflow, error) {
	if err := m.ErrorOnMethod["GetWorkflow"]; err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	wf, ok := m.workflows[id]
	if !ok {
		return nil, errors.NotFoundError("workflow")
	}
	return cloneWorkflow(wf), nil
}

func (m *MockStorage) ListWorkflowsByUser(ctx context.Context, userID int64) ([]*workflow.Workflow, error) {
	if err := m.ErrorOnMethod["ListWorkflowsByUser"]; err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*workflow.Workflow
	for _, wf := range m.sorted() {
		if wf.UserID == userID {
			out = append(out, cloneWorkflow(wf))
		}
	}
	return out, nil
}

func (m *MockStorage) ReplaceWorkflowSteps(ctx context.Context, workflowID int64, steps []workflow.Step) error {
	if err := m.ErrorOnMethod["ReplaceWorkflowSteps"]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, ok := m.workflows[workflowID]
	if !ok {
		return errors.NotFoundError("workflow")
	}
	wf.Steps = nil
	for i := range steps {
		steps[i].ID = m.nextStepID
		steps[i].WorkflowID = workflowID
		m.nextStepID++
		wf.Steps = append(wf.Steps, steps[i])
	}
	wf.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockStorage) SetWorkflowActive(ctx context.Context, id int64, active bool) error {
	if err := m.ErrorOnMethod["SetWorkflowActive"]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, ok := m.workflows[id]
	if !ok {
		return errors.NotFoundError("workflow")
	}
	wf.Active = active
	return nil
}

func (m *MockStorage) DeleteWorkflow(ctx context.Context, id int64) error {
	if err := m.ErrorOnMethod["DeleteWorkflow"]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workflows, id)
	return nil
}

func (m *MockStorage) UpdateStepParams(ctx context.Context, stepID int64, params workflow.Params) error {
	if err := m.ErrorOnMethod["UpdateStepParams"]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, wf := range m.workflows {
		for i := range wf.Steps {
			if wf.Steps[i].ID == stepID {
				wf.Steps[i].Params = params.Clone()
				return nil
			}
		}
	}
	return errors.NotFoundError("step")
}

func (m *MockStorage) MatchingWorkflows(ctx context.Context, service, event string) ([]*workflow.Workflow, error) {
	if err := m.ErrorOnMethod["MatchingWorkflows"]; err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*workflow.Workflow
	for _, wf := range m.sorted() {
		if !wf.Active {
			continue
		}
		for _, step := range wf.Steps {
			if step.Type == workflow.StepTypeAction && step.Matches(service, event) {
				out = append(out, cloneWorkflow(wf))
				break
			}
		}
	}
	return out, nil
}

func (m *MockStorage) ActiveTimerSteps(ctx context.Context, service string) ([]workflow.Step, error) {
	if err := m.ErrorOnMethod["ActiveTimerSteps"]; err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []workflow.Step
	for _, wf := range m.sorted() {
		if !wf.Active {
			continue
		}
		for _, step := range wf.Steps {
			if step.Type == workflow.StepTypeAction && step.Service == service {
				out = append(out, step)
			}
		}
	}
	return out, nil
}

func (m *MockStorage) GetUserToken(ctx context.Context, userID int64, provider string) (*storage.TokenRecord, error) {
	if err := m.ErrorOnMethod["GetUserToken"]; err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.tokens[tokenKey(userID, provider)]
	if !ok {
		return nil, errors.NotFoundError("token")
	}
	copied := *rec
	return &copied, nil
}

func (m *MockStorage) SaveUserToken(ctx context.Context, rec *storage.TokenRecord) error {
	if err := m.ErrorOnMethod["SaveUserToken"]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.UpdatedAt = time.Now().UTC()
	copied := *rec
	m.tokens[tokenKey(rec.UserID, rec.Provider)] = &copied
	return nil
}

func (m *MockStorage) sorted() []*workflow.Workflow {
	out := make([]*workflow.Workflow, 0, len(m.workflows))
	var id int64
	for id = 1; id < m.nextWfID; id++ {
		if wf, ok := m.workflows[id]; ok {
			out = append(out, wf)
		}
	}
	return out
}

func tokenKey(userID int64, provider string) string {
	return provider + "/" + strconv.FormatInt(userID, 10)
}

func cloneWorkflow(wf *workflow.Workflow) *workflow.Workflow {
	copied := *wf
	copied.Steps = make([]workflow.Step, len(wf.Steps))
	copy(copied.Steps, wf.Steps)
	for i := range copied.Steps {
		copied.Steps[i].Params = wf.Steps[i].Params.Clone()
	}
	return &copied
}

// RoundTripFunc adapts a function into an http.RoundTripper
type RoundTripFunc func(req *http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
