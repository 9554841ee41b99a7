// Package reactions implements the side-effecting capability handlers:
// posting messages, sending mail, creating calendar events and starting
// playback. Every handler validates its parameters, obtains a credential and
// returns a structured result or a capability error.
package reactions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"workflow-engine/internal/catalog"
	"workflow-engine/internal/common/errors"
	commonhttp "workflow-engine/internal/common/http"
	"workflow-engine/internal/tokens"
	"workflow-engine/internal/workflow"
)

// Handler runs one reaction capability with resolved parameters.
type Handler func(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error)

// Deps carries the collaborators shared by reaction handlers. Base URLs
// default to the real provider endpoints and exist for tests.
type Deps struct {
	Tokens          tokens.Provider
	Client          *commonhttp.Client
	DiscordBotToken string

	TwitterBaseURL string
	GoogleBaseURL  string
	DiscordBaseURL string
	FaceitBaseURL  string
	SpotifyBaseURL string
}

func (d *Deps) applyDefaults() {
	if d.TwitterBaseURL == "" {
		d.TwitterBaseURL = "https://api.twitter.com/2"
	}
	if d.GoogleBaseURL == "" {
		d.GoogleBaseURL = "https://www.googleapis.com"
	}
	if d.DiscordBaseURL == "" {
		d.DiscordBaseURL = "https://discord.com/api"
	}
	if d.FaceitBaseURL == "" {
		d.FaceitBaseURL = "https://open.faceit.com/data/v4"
	}
	if d.SpotifyBaseURL == "" {
		d.SpotifyBaseURL = "https://api.spotify.com/v1"
	}
}

// Executor dispatches reaction capabilities to their handlers, with the
// handler table checked against the capability catalog at construction.
type Executor struct {
	handlers map[string]Handler
}

// NewExecutor builds the reaction executor with every handler registered.
func NewExecutor(caps *catalog.Registry, deps Deps) (*Executor, error) {
	deps.applyDefaults()

	e := &Executor{handlers: make(map[string]Handler)}
	table := map[string]Handler{
		"twitter.tweet":                deps.twitterTweet,
		"google.send_mail":             deps.googleSendMail,
		"google.create_calendar_event": deps.googleCalendarEvent,
		"discord.send_channel_message": deps.discordSendMessage,
		"faceit.send_room_message":     deps.faceitSendRoomMessage,
		"spotify.play_playlist":        deps.spotifyPlayPlaylist,
		"spotify.play_track":           deps.spotifyPlayTrack,
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
	if capability.Kind != workflow.StepTypeReaction {
		return errors.ConfigError(fmt.Sprintf("handler %q registered as reaction but capability is %s", key, capability.Kind))
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

func jsonBody(payload interface{}) io.Reader {
	data, _ := json.Marshal(payload)
	return bytes.NewReader(data)
}

// textParam returns the first parameter among keys holding a non-blank
// string.
func textParam(params map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		s, ok := params[key].(string)
		if ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}
