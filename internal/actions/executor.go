// Package actions implements the pull-side capability handlers: getters that
// fetch data from external providers mid-workflow and the local timer
// interval handler. Handlers validate parameters, obtain credentials and map
// provider responses into stable output shapes.
package actions

import (
	"context"
	"fmt"

	"workflow-engine/internal/catalog"
	"workflow-engine/internal/common/errors"
	commonhttp "workflow-engine/internal/common/http"
	"workflow-engine/internal/tokens"
	"workflow-engine/internal/workflow"
)

// Handler runs one action capability with resolved parameters.
type Handler func(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error)

// Deps carries the collaborators shared by action handlers. Base URLs
// default to the real provider endpoints and exist for tests.
type Deps struct {
	Tokens       tokens.Provider
	Client       *commonhttp.Client
	FaceitAPIKey string

	DiscordBaseURL string
	GoogleBaseURL  string
	FaceitBaseURL  string
}

func (d *Deps) applyDefaults() {
	if d.DiscordBaseURL == "" {
		d.DiscordBaseURL = "https://discord.com/api"
	}
	if d.GoogleBaseURL == "" {
		d.GoogleBaseURL = "https://gmail.googleapis.com"
	}
	if d.FaceitBaseURL == "" {
		d.FaceitBaseURL = "https://open.faceit.com/data/v4"
	}
}

// Executor dispatches action capabilities to their handlers. The handler
// table is checked against the capability catalog at construction so an
// unknown pair fails at startup, not at call time.
type Executor struct {
	handlers map[string]Handler
}

// NewExecutor builds the action executor with every handler registered.
func NewExecutor(caps *catalog.Registry, deps Deps) (*Executor, error) {
	deps.applyDefaults()

	e := &Executor{handlers: make(map[string]Handler)}
	table := map[string]Handler{
		"discord.list_guilds":              deps.discordListGuilds,
		"google.recent_emails_from_sender": deps.googleRecentEmails,
		"faceit.retrieve_player_stats":     deps.faceitPlayerStats,
		"faceit.retrieve_player_ranking":   deps.faceitPlayerRanking,
		"faceit.retrieve_hub_details":      deps.faceitHubDetails,
		"timer.interval":                   timerInterval,
	}
	for key, handler := range table {
		if err := e.register(caps, key, handler); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Executor) register(caps *catalog.Registry, key string, handler Handler) error {
	service, event, ok := splitKey(key)
	if !ok {
		return errors.ConfigError(fmt.Sprintf("malformed handler key %q", key))
	}
	capability, found := caps.Lookup(service, event)
	if !found {
		return errors.ConfigError(fmt.Sprintf("handler %q has no capability entry", key))
	}
	if capability.Kind != workflow.StepTypeAction {
		return errors.ConfigError(fmt.Sprintf("handler %q registered as action but capability is %s", key, capability.Kind))
	}
	e.handlers[key] = handler
	return nil
}

// Execute runs the handler for (service, event).
func (e *Executor) Execute(ctx context.Context, service, event string, userID int64, params map[string]interface{}) (map[string]interface{}, error) {
	handler, ok := e.handlers[service+"."+event]
	if !ok {
		return nil, errors.NotSupportedError(service, event)
	}
	return handler(ctx, userID, params)
}

func splitKey(key string) (service, event string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return key[:i], key[i+1:], i > 0 && i < len(key)-1
		}
	}
	return "", "", false
}
