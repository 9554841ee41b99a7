package actions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-engine/internal/catalog"
	"workflow-engine/internal/common/errors"
	commonhttp "workflow-engine/internal/common/http"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token(ctx context.Context, userID int64, provider string) (string, error) {
	return s.token, s.err
}

func newExecutor(t *testing.T, deps Deps) *Executor {
	t.Helper()
	if deps.Client == nil {
		deps.Client = commonhttp.NewClient()
	}
	e, err := NewExecutor(catalog.Default(), deps)
	require.NoError(t, err)
	return e
}

func jsonServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)
	return server
}

func TestExecuteUnknownCapability(t *testing.T) {
	e := newExecutor(t, Deps{Tokens: staticTokens{}})

	_, err := e.Execute(context.Background(), "github", "star", 1, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotSupported))
}

func TestTimerInterval(t *testing.T) {
	e := newExecutor(t, Deps{Tokens: staticTokens{}})

	out, err := e.Execute(context.Background(), "timer", "interval", 1, map[string]interface{}{
		"interval_minutes": 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, out["interval_minutes"])
	assert.Equal(t, 300, out["interval_seconds"])
	assert.Equal(t, "timer_configured", out["status"])
}

func TestTimerIntervalMissingParam(t *testing.T) {
	e := newExecutor(t, Deps{Tokens: staticTokens{}})

	_, err := e.Execute(context.Background(), "timer", "interval", 1, map[string]interface{}{})
	assert.True(t, errors.IsType(err, errors.ErrTypeCapability))
}

func TestParseIntervalMinutes(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]interface{}
		want   int
		found  bool
	}{
		{"canonical key", map[string]interface{}{"interval_minutes": 5}, 5, true},
		{"minutes alias", map[string]interface{}{"minutes": float64(10)}, 10, true},
		{"mins alias", map[string]interface{}{"mins": "3"}, 3, true},
		{"interval alias", map[string]interface{}{"interval": 7}, 7, true},
		{"every alias", map[string]interface{}{"every": "15"}, 15, true},
		{"first key wins", map[string]interface{}{"interval_minutes": 2, "every": 30}, 2, true},
		{"floor of one minute", map[string]interface{}{"interval_minutes": 0.2}, 1, true},
		{"zero rejected", map[string]interface{}{"interval_minutes": 0}, 0, false},
		{"negative rejected", map[string]interface{}{"interval_minutes": -5}, 0, false},
		{"non-numeric rejected", map[string]interface{}{"interval_minutes": "soon"}, 0, false},
		{"empty params", map[string]interface{}{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ParseIntervalMinutes(tt.params)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscordListGuilds(t *testing.T) {
	server := jsonServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/@me/guilds", r.URL.Path)
		assert.Equal(t, "Bearer discord-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"name": "First Guild", "owner": true},
			{"name": "Second Guild"},
			{"owner": false},
		})
	})

	e := newExecutor(t, Deps{
		Tokens:         staticTokens{token: "discord-token"},
		DiscordBaseURL: server.URL,
	})

	out, err := e.Execute(context.Background(), "discord", "list_guilds", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "First Guild (owner)\nSecond Guild\nUnknown guild", out["text"])
}

func TestDiscordListGuildsMissingCredential(t *testing.T) {
	e := newExecutor(t, Deps{
		Tokens: staticTokens{err: errors.CapabilityError("no discord credential", nil)},
	})

	_, err := e.Execute(context.Background(), "discord", "list_guilds", 1, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeCapability))
}

func TestFaceitPlayerStats(t *testing.T) {
	server := jsonServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/players/p-1/games/cs2/stats", r.URL.Path)
		assert.Equal(t, "Bearer faceit-key", r.Header.Get("Authorization"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"items": []interface{}{}})
	})

	e := newExecutor(t, Deps{
		Tokens:        staticTokens{},
		FaceitAPIKey:  "faceit-key",
		FaceitBaseURL: server.URL,
	})

	out, err := e.Execute(context.Background(), "faceit", "retrieve_player_stats", 1, map[string]interface{}{
		"player_id": "p-1",
		"game_id":   "cs2",
		"limit":     "20",
	})
	require.NoError(t, err)
	assert.Equal(t, "p-1", out["player_id"])
	assert.Equal(t, "cs2", out["game_id"])
	assert.NotNil(t, out["stats"])
}

func TestFaceitPlayerStatsMissingParams(t *testing.T) {
	e := newExecutor(t, Deps{Tokens: staticTokens{}, FaceitAPIKey: "faceit-key"})

	_, err := e.Execute(context.Background(), "faceit", "retrieve_player_stats", 1, map[string]interface{}{
		"game_id": "cs2",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "player_id")

	_, err = e.Execute(context.Background(), "faceit", "retrieve_player_stats", 1, map[string]interface{}{
		"player_id": "p-1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "game_id")
}

func TestFaceitMissingAPIKey(t *testing.T) {
	e := newExecutor(t, Deps{Tokens: staticTokens{}})

	_, err := e.Execute(context.Background(), "faceit", "retrieve_hub_details", 1, map[string]interface{}{
		"hub_id": "h-1",
	})
	assert.True(t, errors.IsType(err, errors.ErrTypeCapability))
}

func TestFaceitPlayerRanking(t *testing.T) {
	server := jsonServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rankings/games/cs2/regions/EU/players/p-1", r.URL.Path)
		assert.Equal(t, "FR", r.URL.Query().Get("country"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"position": float64(12)})
	})

	e := newExecutor(t, Deps{
		Tokens:        staticTokens{},
		FaceitAPIKey:  "faceit-key",
		FaceitBaseURL: server.URL,
	})

	out, err := e.Execute(context.Background(), "faceit", "retrieve_player_ranking", 1, map[string]interface{}{
		"player_id": "p-1",
		"game_id":   "cs2",
		"region":    "EU",
		"country":   "FR",
	})
	require.NoError(t, err)
	assert.Equal(t, "EU", out["region"])
}

func TestFaceitHubDetailsExpanded(t *testing.T) {
	server := jsonServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hubs/h-1", r.URL.Path)
		assert.Equal(t, []string{"organizer", "game"}, r.URL.Query()["expanded"])
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"name": "The Hub"})
	})

	e := newExecutor(t, Deps{
		Tokens:        staticTokens{},
		FaceitAPIKey:  "faceit-key",
		FaceitBaseURL: server.URL,
	})

	out, err := e.Execute(context.Background(), "faceit", "retrieve_hub_details", 1, map[string]interface{}{
		"hub_id":   "h-1",
		"expanded": "organizer, game",
	})
	require.NoError(t, err)
	assert.Equal(t, "h-1", out["hub_id"])
}

func TestGoogleRecentEmails(t *testing.T) {
	server := jsonServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/gmail/v1/users/me/messages":
			assert.Equal(t, "from:boss@example.com", r.URL.Query().Get("q"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"messages": []map[string]interface{}{{"id": "m-1"}},
			})
		case "/gmail/v1/users/me/messages/m-1":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"snippet": "see attached",
				"payload": map[string]interface{}{
					"headers": []map[string]interface{}{
						{"name": "Subject", "value": "Quarterly report"},
						{"name": "Date", "value": "Mon, 2 Jun 2025"},
					},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	e := newExecutor(t, Deps{
		Tokens:        staticTokens{token: "google-token"},
		GoogleBaseURL: server.URL,
	})

	out, err := e.Execute(context.Background(), "google", "recent_emails_from_sender", 1, map[string]interface{}{
		"sender": "boss@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "- Quarterly report (Mon, 2 Jun 2025)", out["text"])
}

func TestGoogleRecentEmailsMissingSender(t *testing.T) {
	e := newExecutor(t, Deps{Tokens: staticTokens{token: "google-token"}})

	_, err := e.Execute(context.Background(), "google", "recent_emails_from_sender", 1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sender")
}

func TestGoogleRecentEmailsNoMatches(t *testing.T) {
	server := jsonServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{})
	})

	e := newExecutor(t, Deps{
		Tokens:        staticTokens{token: "google-token"},
		GoogleBaseURL: server.URL,
	})

	out, err := e.Execute(context.Background(), "google", "recent_emails_from_sender", 1, map[string]interface{}{
		"sender": "nobody@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "No emails found.", out["text"])
}
