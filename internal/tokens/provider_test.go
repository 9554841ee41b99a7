package tokens_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-engine/internal/common/errors"
	commonhttp "workflow-engine/internal/common/http"
	"workflow-engine/internal/storage"
	"workflow-engine/internal/testutil"
	"workflow-engine/internal/tokens"
)

func TestTokenMissingCredential(t *testing.T) {
	store := testutil.NewMockStorage()
	manager := tokens.NewManager(store, tokens.NewRegistry(nil), commonhttp.NewClient())

	_, err := manager.Token(context.Background(), 1, "google")
	assert.True(t, errors.IsType(err, errors.ErrTypeCapability))
}

func TestTokenValidReturnsStored(t *testing.T) {
	store := testutil.NewMockStorage()
	require.NoError(t, store.SaveUserToken(context.Background(), &storage.TokenRecord{
		UserID:      1,
		Provider:    "google",
		AccessToken: "valid-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	manager := tokens.NewManager(store, tokens.NewRegistry(nil), commonhttp.NewClient())

	token, err := manager.Token(context.Background(), 1, "google")
	require.NoError(t, err)
	assert.Equal(t, "valid-token", token)
}

func TestTokenWithoutExpiryNeverRefreshes(t *testing.T) {
	store := testutil.NewMockStorage()
	require.NoError(t, store.SaveUserToken(context.Background(), &storage.TokenRecord{
		UserID:      1,
		Provider:    "faceit",
		AccessToken: "api-key-style",
	}))

	manager := tokens.NewManager(store, tokens.NewRegistry(nil), commonhttp.NewClient())

	token, err := manager.Token(context.Background(), 1, "faceit")
	require.NoError(t, err)
	assert.Equal(t, "api-key-style", token)
}

func TestTokenRefreshesExpired(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"grant_type":    r.PostFormValue("grant_type"),
			"refresh_token": r.PostFormValue("refresh_token"),
			"client_id":     r.PostFormValue("client_id"),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "fresh-token",
			"refresh_token": "rotated-refresh",
			"expires_in":    3600,
		})
	}))
	defer server.Close()

	store := testutil.NewMockStorage()
	require.NoError(t, store.SaveUserToken(context.Background(), &storage.TokenRecord{
		UserID:       1,
		Provider:     "google",
		AccessToken:  "stale-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	registry := tokens.NewRegistry(map[string]tokens.Endpoint{
		"google": {TokenURL: server.URL, ClientID: "cid", ClientSecret: "secret"},
	})
	manager := tokens.NewManager(store, registry, commonhttp.NewClient())

	token, err := manager.Token(context.Background(), 1, "google")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, "refresh_token", gotForm["grant_type"])
	assert.Equal(t, "refresh-1", gotForm["refresh_token"])
	assert.Equal(t, "cid", gotForm["client_id"])

	// refreshed token persisted, rotated refresh token kept
	rec, err := store.GetUserToken(context.Background(), 1, "google")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", rec.AccessToken)
	assert.Equal(t, "rotated-refresh", rec.RefreshToken)
	assert.False(t, rec.Expired(time.Now()))
}

func TestTokenExpiredWithoutRefreshToken(t *testing.T) {
	store := testutil.NewMockStorage()
	require.NoError(t, store.SaveUserToken(context.Background(), &storage.TokenRecord{
		UserID:      1,
		Provider:    "google",
		AccessToken: "stale-token",
		ExpiresAt:   time.Now().Add(-time.Minute),
	}))

	manager := tokens.NewManager(store, tokens.NewRegistry(nil), commonhttp.NewClient())

	_, err := manager.Token(context.Background(), 1, "google")
	assert.True(t, errors.IsType(err, errors.ErrTypeCapability))
}

func TestTokenRefreshRemoteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	store := testutil.NewMockStorage()
	require.NoError(t, store.SaveUserToken(context.Background(), &storage.TokenRecord{
		UserID:       1,
		Provider:     "google",
		AccessToken:  "stale-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	registry := tokens.NewRegistry(map[string]tokens.Endpoint{
		"google": {TokenURL: server.URL, ClientID: "cid", ClientSecret: "secret"},
	})
	manager := tokens.NewManager(store, registry, commonhttp.NewClient())

	_, err := manager.Token(context.Background(), 1, "google")
	assert.True(t, errors.IsType(err, errors.ErrTypeCapability))
}
