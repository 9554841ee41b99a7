package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-engine/internal/common/errors"
	commonhttp "workflow-engine/internal/common/http"
	"workflow-engine/internal/redis"
)

func newTwitchServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostFormValue("grant_type"))
		assert.Equal(t, "cid", r.PostFormValue("client_id"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "app-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
		assert.Equal(t, "cid", r.Header.Get("Client-Id"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("login") == "somecaster" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{{"id": "broadcaster-1", "login": "somecaster"}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
	})
	mux.HandleFunc("/eventsub/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPost:
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &body))
			assert.Equal(t, "stream.online", body["type"])
			assert.Equal(t, "2", body["version"])
			condition, _ := body["condition"].(map[string]interface{})
			assert.Equal(t, "broadcaster-1", condition["broadcaster_user_id"])
			transport, _ := body["transport"].(map[string]interface{})
			assert.Equal(t, "webhook", transport["method"])
			assert.Equal(t, "https://hooks.example/events/twitch", transport["callback"])
			assert.Equal(t, "shhh", transport["secret"])

			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{{"id": "sub-1"}},
			})
		case http.MethodDelete:
			assert.Equal(t, "sub-1", r.URL.Query().Get("id"))
			w.WriteHeader(http.StatusNoContent)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &tokenCalls
}

func newTestTwitchClient(t *testing.T, serverURL string, cache TokenCache) *TwitchClient {
	t.Helper()
	return NewTwitchClient(TwitchConfig{
		ClientID:      "cid",
		ClientSecret:  "secret",
		WebhookSecret: "shhh",
		CallbackURL:   "https://hooks.example/events/twitch",
		AuthBaseURL:   serverURL,
		HelixBaseURL:  serverURL,
	}, commonhttp.NewClient(), cache)
}

func TestTwitchSubscriptionLifecycle(t *testing.T) {
	server, _ := newTwitchServer(t)
	client := newTestTwitchClient(t, server.URL, nil)
	ctx := context.Background()

	broadcasterID, err := client.UserIDByLogin(ctx, "somecaster")
	require.NoError(t, err)
	assert.Equal(t, "broadcaster-1", broadcasterID)

	subID, err := client.CreateSubscription(ctx, "stream.online", broadcasterID)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", subID)

	require.NoError(t, client.DeleteSubscription(ctx, subID))
}

func TestTwitchUnknownLogin(t *testing.T) {
	server, _ := newTwitchServer(t)
	client := newTestTwitchClient(t, server.URL, nil)

	_, err := client.UserIDByLogin(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeSubscription))
	assert.Contains(t, err.Error(), "nobody")
}

func TestTwitchAppTokenCached(t *testing.T) {
	server, tokenCalls := newTwitchServer(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	cache, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	client := newTestTwitchClient(t, server.URL, cache)
	ctx := context.Background()

	_, err = client.UserIDByLogin(ctx, "somecaster")
	require.NoError(t, err)
	_, err = client.UserIDByLogin(ctx, "somecaster")
	require.NoError(t, err)

	// second lookup reuses the cached app token
	assert.Equal(t, 1, *tokenCalls)
}
