package webhooks

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-engine/internal/catalog"
	"workflow-engine/internal/common/errors"
	"workflow-engine/internal/workflow"
)

// fakeSubscriber records subscription calls and can fail on demand
type fakeSubscriber struct {
	nextID      int
	created     []string
	deleted     []string
	failLogins  map[string]error
	failCreate  error
	failDelete  error
	knownLogins map[string]string
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		failLogins:  make(map[string]error),
		knownLogins: map[string]string{"somecaster": "broadcaster-1"},
	}
}

func (f *fakeSubscriber) UserIDByLogin(ctx context.Context, login string) (string, error) {
	if err := f.failLogins[login]; err != nil {
		return "", err
	}
	if id, ok := f.knownLogins[login]; ok {
		return id, nil
	}
	return "", errors.SubscriptionError(fmt.Sprintf("streamer %q not found", login), nil)
}

func (f *fakeSubscriber) CreateSubscription(ctx context.Context, eventType, broadcasterID string) (string, error) {
	if f.failCreate != nil {
		return "", f.failCreate
	}
	f.nextID++
	id := fmt.Sprintf("sub-%d", f.nextID)
	f.created = append(f.created, id)
	return id, nil
}

func (f *fakeSubscriber) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	if f.failDelete != nil {
		return f.failDelete
	}
	f.deleted = append(f.deleted, subscriptionID)
	return nil
}

func TestCompileStepsPushTrigger(t *testing.T) {
	sub := newFakeSubscriber()
	m := NewManager(catalog.Default(), sub)

	steps, err := m.CompileSteps(context.Background(), []StepDefinition{
		{
			Type:    workflow.StepTypeAction,
			Service: "twitch",
			Event:   "stream.online",
			Params:  map[string]interface{}{"username_streamer": "somecaster"},
		},
		{
			Type:    workflow.StepTypeReaction,
			Service: "discord",
			Event:   "send_channel_message",
			Params:  map[string]interface{}{"channel_id": "123"},
		},
	})
	require.NoError(t, err)
	require.Len(t, steps, 2)

	// exactly one subscription, recorded on the trigger step
	assert.Equal(t, []string{"sub-1"}, sub.created)
	webhookID, _ := steps[0].Params.GetString("webhook_id")
	assert.Equal(t, "sub-1", webhookID)
	broadcasterID, _ := steps[0].Params.GetString("broadcaster_user_id")
	assert.Equal(t, "broadcaster-1", broadcasterID)

	// the reaction step got no subscription
	_, hasWebhook := steps[1].Params.GetString("webhook_id")
	assert.False(t, hasWebhook)
}

func TestCompileStepsUnknownStreamerAborts(t *testing.T) {
	sub := newFakeSubscriber()
	m := NewManager(catalog.Default(), sub)

	_, err := m.CompileSteps(context.Background(), []StepDefinition{
		{
			Type:    workflow.StepTypeAction,
			Service: "twitch",
			Event:   "stream.online",
			Params:  map[string]interface{}{"username_streamer": "ghost"},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeSubscription))
	assert.Empty(t, sub.created)
}

func TestCompileStepsMissingStreamerParam(t *testing.T) {
	sub := newFakeSubscriber()
	m := NewManager(catalog.Default(), sub)

	_, err := m.CompileSteps(context.Background(), []StepDefinition{
		{
			Type:    workflow.StepTypeAction,
			Service: "twitch",
			Event:   "stream.online",
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username_streamer")
}

func TestCompileStepsRollbackOnLaterFailure(t *testing.T) {
	sub := newFakeSubscriber()
	sub.knownLogins["othercaster"] = "broadcaster-2"
	m := NewManager(catalog.Default(), sub)

	// the second push trigger fails its lookup; the first subscription must
	// be rolled back
	sub.failLogins["othercaster"] = errors.SubscriptionError("twitch is down", nil)

	_, err := m.CompileSteps(context.Background(), []StepDefinition{
		{
			Type:    workflow.StepTypeAction,
			Service: "twitch",
			Event:   "stream.online",
			Params:  map[string]interface{}{"username_streamer": "somecaster"},
		},
		{
			Type:    workflow.StepTypeAction,
			Service: "twitch",
			Event:   "channel.follow",
			Params:  map[string]interface{}{"username_streamer": "othercaster"},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeSubscription))
	assert.Equal(t, []string{"sub-1"}, sub.created)
	assert.Equal(t, []string{"sub-1"}, sub.deleted)
}

func TestCompileStepsLinks(t *testing.T) {
	sub := newFakeSubscriber()
	m := NewManager(catalog.Default(), sub)

	steps, err := m.CompileSteps(context.Background(), []StepDefinition{
		{
			ClientID: "a",
			Type:     workflow.StepTypeAction,
			Service:  "faceit",
			Event:    "retrieve_player_stats",
			Params:   map[string]interface{}{"player_id": "p-1", "game_id": "cs2"},
		},
		{
			ClientID: "b",
			Type:     workflow.StepTypeReaction,
			Service:  "discord",
			Event:    "send_channel_message",
			Params:   map[string]interface{}{"channel_id": "123", "message": "default text"},
			Links: map[string]LinkDefinition{
				"message": {Source: "a", Path: "stats.summary"},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, steps, 2)

	value := steps[1].Params["message"]
	require.True(t, value.IsLink())
	link := value.Link()
	assert.Equal(t, 0, link.SourceStep)
	assert.Equal(t, "stats.summary", link.Path)
	// the displaced literal becomes the fallback
	assert.Equal(t, "default text", link.Fallback)
}

func TestCompileStepsLinkFieldAliasAndExplicitFallback(t *testing.T) {
	sub := newFakeSubscriber()
	m := NewManager(catalog.Default(), sub)

	steps, err := m.CompileSteps(context.Background(), []StepDefinition{
		{
			ClientID: "src",
			Type:     workflow.StepTypeAction,
			Service:  "discord",
			Event:    "list_guilds",
		},
		{
			Type:    workflow.StepTypeReaction,
			Service: "twitter",
			Event:   "tweet",
			Links: map[string]LinkDefinition{
				"message": {Source: "src", Field: "text", Fallback: "nothing to say"},
			},
		},
	})
	require.NoError(t, err)

	link := steps[1].Params["message"].Link()
	require.NotNil(t, link)
	assert.Equal(t, "text", link.Path)
	assert.Equal(t, "nothing to say", link.Fallback)
}

func TestCompileStepsIgnoresInvalidLinks(t *testing.T) {
	sub := newFakeSubscriber()
	m := NewManager(catalog.Default(), sub)

	steps, err := m.CompileSteps(context.Background(), []StepDefinition{
		{
			Type:    workflow.StepTypeReaction,
			Service: "twitter",
			Event:   "tweet",
			Params:  map[string]interface{}{"message": "literal wins"},
			Links: map[string]LinkDefinition{
				"message": {Source: "missing-step", Path: "text"},
				"other":   {Path: "no.source"},
			},
		},
	})
	require.NoError(t, err)

	value, ok := steps[0].Params.GetString("message")
	assert.True(t, ok)
	assert.Equal(t, "literal wins", value)
}

func TestReleaseSteps(t *testing.T) {
	sub := newFakeSubscriber()
	m := NewManager(catalog.Default(), sub)

	steps := []workflow.Step{
		{
			Type: workflow.StepTypeAction, Service: "twitch", Event: "stream.online",
			Params: workflow.LiteralParams(map[string]interface{}{"webhook_id": "sub-9"}),
		},
		{
			Type: workflow.StepTypeReaction, Service: "twitter", Event: "tweet",
			Params: workflow.Params{},
		},
	}

	m.ReleaseSteps(context.Background(), steps)
	assert.Equal(t, []string{"sub-9"}, sub.deleted)
}

func TestReleaseStepsSwallowsFailures(t *testing.T) {
	sub := newFakeSubscriber()
	sub.failDelete = errors.SubscriptionError("remote refused", nil)
	m := NewManager(catalog.Default(), sub)

	steps := []workflow.Step{
		{
			Type: workflow.StepTypeAction, Service: "twitch", Event: "stream.online",
			Params: workflow.LiteralParams(map[string]interface{}{"webhook_id": "sub-9"}),
		},
	}

	// must not panic or propagate the error
	m.ReleaseSteps(context.Background(), steps)
	assert.Empty(t, sub.deleted)
}
