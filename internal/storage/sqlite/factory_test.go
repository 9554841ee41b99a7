package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-engine/internal/common/errors"
	"workflow-engine/internal/storage"
	"workflow-engine/internal/workflow"
)

func open(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.New(storage.Config{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })
	return store
}

func sample(userID int64) *workflow.Workflow {
	return &workflow.Workflow{
		UserID:     userID,
		Name:       "stream alerts",
		Visibility: workflow.VisibilityPrivate,
		Active:     true,
		Steps: []workflow.Step{
			{
				Order:   0,
				Type:    workflow.StepTypeAction,
				Service: "twitch",
				Event:   "stream.online",
				Params:  workflow.LiteralParams(map[string]interface{}{"username_streamer": "somecaster"}),
			},
			{
				Order:   1,
				Type:    workflow.StepTypeReaction,
				Service: "discord",
				Event:   "send_channel_message",
				Params:  workflow.LiteralParams(map[string]interface{}{"channel_id": "123"}),
			},
		},
	}
}

func TestFactoryRegistered(t *testing.T) {
	assert.True(t, storage.IsSupported("sqlite"))
}

func TestNewUnknownType(t *testing.T) {
	_, err := storage.New(storage.Config{Type: "cassandra"})
	assert.Error(t, err)
}

func TestCreateAndGetWorkflow(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	wf := sample(7)
	require.NoError(t, store.CreateWorkflow(ctx, wf))
	assert.NotZero(t, wf.ID)
	assert.NotZero(t, wf.Steps[0].ID)

	got, err := store.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "stream alerts", got.Name)
	assert.Equal(t, int64(7), got.UserID)
	assert.True(t, got.Active)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "twitch", got.Steps[0].Service)
	name, ok := got.Steps[0].Params.GetString("username_streamer")
	assert.True(t, ok)
	assert.Equal(t, "somecaster", name)
}

func TestGetWorkflowNotFound(t *testing.T) {
	store := open(t)

	_, err := store.GetWorkflow(context.Background(), 9999)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestListWorkflowsByUser(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	require.NoError(t, store.CreateWorkflow(ctx, sample(1)))
	require.NoError(t, store.CreateWorkflow(ctx, sample(1)))
	require.NoError(t, store.CreateWorkflow(ctx, sample(2)))

	mine, err := store.ListWorkflowsByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, wf := range mine {
		assert.Len(t, wf.Steps, 2)
	}
}

func TestReplaceWorkflowSteps(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	wf := sample(1)
	require.NoError(t, store.CreateWorkflow(ctx, wf))

	replacement := []workflow.Step{
		{
			Order:   0,
			Type:    workflow.StepTypeAction,
			Service: "timer",
			Event:   "interval",
			Params:  workflow.LiteralParams(map[string]interface{}{"interval_minutes": 5}),
		},
	}
	require.NoError(t, store.ReplaceWorkflowSteps(ctx, wf.ID, replacement))

	got, err := store.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "timer", got.Steps[0].Service)
}

func TestSetWorkflowActive(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	wf := sample(1)
	require.NoError(t, store.CreateWorkflow(ctx, wf))
	require.NoError(t, store.SetWorkflowActive(ctx, wf.ID, false))

	got, err := store.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	err = store.SetWorkflowActive(ctx, 9999, true)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestDeleteWorkflow(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	wf := sample(1)
	require.NoError(t, store.CreateWorkflow(ctx, wf))
	require.NoError(t, store.DeleteWorkflow(ctx, wf.ID))

	_, err := store.GetWorkflow(ctx, wf.ID)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestUpdateStepParams(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	wf := sample(1)
	require.NoError(t, store.CreateWorkflow(ctx, wf))

	params := wf.Steps[0].Params.Clone()
	params["subscription_id"] = workflow.Literal("sub-abc")
	require.NoError(t, store.UpdateStepParams(ctx, wf.Steps[0].ID, params))

	got, err := store.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	sub, ok := got.Steps[0].Params.GetString("subscription_id")
	assert.True(t, ok)
	assert.Equal(t, "sub-abc", sub)
}

func TestMatchingWorkflows(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	matching := sample(1)
	require.NoError(t, store.CreateWorkflow(ctx, matching))

	inactive := sample(1)
	inactive.Active = false
	require.NoError(t, store.CreateWorkflow(ctx, inactive))

	other := sample(2)
	other.Steps[0].Event = "channel.follow"
	require.NoError(t, store.CreateWorkflow(ctx, other))

	got, err := store.MatchingWorkflows(ctx, "twitch", "stream.online")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, matching.ID, got[0].ID)
	assert.Len(t, got[0].Steps, 2)
}

func TestMatchingWorkflowsIgnoresReactions(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	require.NoError(t, store.CreateWorkflow(ctx, sample(1)))

	// the sample has discord send_channel_message only as a reaction
	got, err := store.MatchingWorkflows(ctx, "discord", "send_channel_message")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestActiveTimerSteps(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	active := sample(1)
	active.Steps[0].Service = "timer"
	active.Steps[0].Event = "interval"
	active.Steps[0].Params = workflow.LiteralParams(map[string]interface{}{"interval_minutes": 10})
	require.NoError(t, store.CreateWorkflow(ctx, active))

	paused := sample(1)
	paused.Steps[0].Service = "timer"
	paused.Steps[0].Event = "interval"
	paused.Active = false
	require.NoError(t, store.CreateWorkflow(ctx, paused))

	steps, err := store.ActiveTimerSteps(ctx, "timer")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, active.ID, steps[0].WorkflowID)
	assert.Equal(t, "interval", steps[0].Event)
}

func TestTokenRoundTrip(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	_, err := store.GetUserToken(ctx, 1, "google")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	rec := &storage.TokenRecord{
		UserID:       1,
		Provider:     "google",
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, store.SaveUserToken(ctx, rec))

	got, err := store.GetUserToken(ctx, 1, "google")
	require.NoError(t, err)
	assert.Equal(t, "at-1", got.AccessToken)
	assert.False(t, got.Expired(time.Now()))

	// upsert replaces the existing row
	rec.AccessToken = "at-2"
	require.NoError(t, store.SaveUserToken(ctx, rec))

	got, err = store.GetUserToken(ctx, 1, "google")
	require.NoError(t, err)
	assert.Equal(t, "at-2", got.AccessToken)
}
