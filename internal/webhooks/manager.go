package webhooks

import (
	"context"
	"fmt"

	"workflow-engine/internal/catalog"
	"workflow-engine/internal/common/errors"
	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/workflow"
)

// Subscriber is the push-subscription surface of the provider client.
type Subscriber interface {
	UserIDByLogin(ctx context.Context, login string) (string, error)
	CreateSubscription(ctx context.Context, eventType, broadcasterID string) (string, error)
	DeleteSubscription(ctx context.Context, subscriptionID string) error
}

// StepDefinition is a client-supplied step before compilation: literal
// params plus optional link declarations referencing other steps by their
// client-side id.
type StepDefinition struct {
	ClientID string                    `json:"client_id,omitempty"`
	Type     workflow.StepType         `json:"type"`
	Service  string                    `json:"service"`
	Event    string                    `json:"event"`
	Params   map[string]interface{}    `json:"params,omitempty"`
	Links    map[string]LinkDefinition `json:"links,omitempty"`
}

// LinkDefinition declares that a parameter takes its value from another
// step's output at Path. Field is an accepted alias for Path.
type LinkDefinition struct {
	Source   string      `json:"source"`
	Path     string      `json:"path,omitempty"`
	Field    string      `json:"field,omitempty"`
	Fallback interface{} `json:"fallback,omitempty"`
}

func (l LinkDefinition) path() string {
	if l.Path != "" {
		return l.Path
	}
	return l.Field
}

// Manager compiles step definitions into stored steps and keeps push
// subscriptions consistent with them.
type Manager struct {
	caps   *catalog.Registry
	twitch Subscriber
	logger logging.Logger
}

// NewManager creates a webhook lifecycle manager.
func NewManager(caps *catalog.Registry, twitch Subscriber) *Manager {
	return &Manager{
		caps:   caps,
		twitch: twitch,
		logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "webhooks"}),
	}
}

// CompileSteps turns step definitions into steps ready for persistence:
// link declarations become stored link params and every push-trigger step
// gets a provider subscription, its id recorded in the step's params. Any
// subscription failure rolls back the subscriptions already created in this
// batch and aborts with a SubscriptionError, so a workflow is never left
// half-configured.
func (m *Manager) CompileSteps(ctx context.Context, defs []StepDefinition) ([]workflow.Step, error) {
	indexByClientID := make(map[string]int, len(defs))
	for i, def := range defs {
		if def.ClientID != "" {
			indexByClientID[def.ClientID] = i
		}
	}

	steps := make([]workflow.Step, 0, len(defs))
	var createdIDs []string

	rollback := func() {
		for _, id := range createdIDs {
			if err := m.twitch.DeleteSubscription(ctx, id); err != nil {
				m.logger.Warn("Rollback of subscription failed",
					logging.Field{Key: "webhook_id", Value: id},
					logging.Field{Key: "error", Value: err.Error()})
			}
		}
	}

	for order, def := range defs {
		params := compileParams(def, indexByClientID)
		step := workflow.Step{
			Order:   order,
			Type:    def.Type,
			Service: def.Service,
			Event:   def.Event,
			Params:  params,
		}

		if m.isPushTrigger(&step) {
			webhookID, broadcasterID, err := m.subscribe(ctx, &step, def.Params)
			if err != nil {
				rollback()
				return nil, errors.SubscriptionError(
					fmt.Sprintf("failed to create step %d (%s.%s)", order, def.Service, def.Event), err)
			}
			createdIDs = append(createdIDs, webhookID)
			params["webhook_id"] = workflow.Literal(webhookID)
			params["broadcaster_user_id"] = workflow.Literal(broadcasterID)
		}

		steps = append(steps, step)
	}

	return steps, nil
}

func (m *Manager) isPushTrigger(step *workflow.Step) bool {
	if step.Type != workflow.StepTypeAction {
		return false
	}
	capability, ok := m.caps.Lookup(step.Service, step.Event)
	return ok && capability.Trigger == catalog.TriggerPush
}

func (m *Manager) subscribe(ctx context.Context, step *workflow.Step, rawParams map[string]interface{}) (webhookID, broadcasterID string, err error) {
	login, _ := rawParams["username_streamer"].(string)
	if login == "" {
		return "", "", errors.SubscriptionError("missing 'username_streamer' in params", nil)
	}

	broadcasterID, err = m.twitch.UserIDByLogin(ctx, login)
	if err != nil {
		return "", "", err
	}
	webhookID, err = m.twitch.CreateSubscription(ctx, step.Event, broadcasterID)
	if err != nil {
		return "", "", err
	}
	return webhookID, broadcasterID, nil
}

// ReleaseSteps deregisters every subscription recorded on the given steps.
// Failures are logged and swallowed: a dangling remote subscription never
// blocks a local delete.
func (m *Manager) ReleaseSteps(ctx context.Context, steps []workflow.Step) {
	for _, step := range steps {
		if step.Type != workflow.StepTypeAction {
			continue
		}
		webhookID, ok := step.Params.GetString("webhook_id")
		if !ok || webhookID == "" {
			continue
		}
		if err := m.twitch.DeleteSubscription(ctx, webhookID); err != nil {
			m.logger.Warn("Failed to delete webhook subscription",
				logging.Field{Key: "webhook_id", Value: webhookID},
				logging.Field{Key: "step", Value: step.Label()},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
}

// compileParams merges literal params with link declarations. An invalid
// link (no source, no path, unknown source step) leaves the literal value
// in place, matching the tolerant behavior of workflow creation: bad links
// degrade instead of failing the mutation.
func compileParams(def StepDefinition, indexByClientID map[string]int) workflow.Params {
	params := workflow.LiteralParams(def.Params)
	for name, link := range def.Links {
		path := link.path()
		if link.Source == "" || path == "" {
			continue
		}
		sourceIndex, ok := indexByClientID[link.Source]
		if !ok {
			continue
		}

		fallback := link.Fallback
		if workflow.Empty(fallback) {
			if existing, found := params.GetLiteral(name); found && !workflow.Empty(existing) {
				fallback = existing
			} else {
				fallback = nil
			}
		}
		params[name] = workflow.Linked(sourceIndex, path, fallback)
	}
	return params
}
