// Package tokens supplies current OAuth access tokens for (user, provider)
// pairs, refreshing expired tokens lazily through each provider's token
// endpoint.
package tokens

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"workflow-engine/internal/common/errors"
	commonhttp "workflow-engine/internal/common/http"
	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/storage"
)

// Provider hands out a valid access token for a user and provider. Handlers
// call this once per step execution, never ahead of time.
type Provider interface {
	Token(ctx context.Context, userID int64, provider string) (string, error)
}

// Endpoint describes one OAuth provider's refresh endpoint.
type Endpoint struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// Registry maps provider names to refresh endpoints. It is built once at
// startup and read-only afterwards.
type Registry struct {
	endpoints map[string]Endpoint
}

// NewRegistry builds an endpoint registry.
func NewRegistry(endpoints map[string]Endpoint) *Registry {
	copied := make(map[string]Endpoint, len(endpoints))
	for name, ep := range endpoints {
		copied[name] = ep
	}
	return &Registry{endpoints: copied}
}

// Endpoint returns the refresh endpoint for a provider.
func (r *Registry) Endpoint(provider string) (Endpoint, bool) {
	ep, ok := r.endpoints[provider]
	return ep, ok
}

// Manager implements Provider on top of stored token records.
type Manager struct {
	store    storage.Storage
	registry *Registry
	client   *commonhttp.Client
	logger   logging.Logger
	now      func() time.Time
}

// NewManager creates a token manager.
func NewManager(store storage.Storage, registry *Registry, client *commonhttp.Client) *Manager {
	return &Manager{
		store:    store,
		registry: registry,
		client:   client,
		logger:   logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "tokens"}),
		now:      time.Now,
	}
}

// Token returns the stored access token for (user, provider), refreshing it
// first when expired. A missing or unrefreshable credential is a
// CapabilityError so the owning step fails without aborting its run.
func (m *Manager) Token(ctx context.Context, userID int64, provider string) (string, error) {
	rec, err := m.store.GetUserToken(ctx, userID, provider)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeNotFound) {
			return "", errors.CapabilityError(fmt.Sprintf("no %s credential for user %d", provider, userID), nil)
		}
		return "", err
	}

	if !rec.Expired(m.now()) {
		return rec.AccessToken, nil
	}

	refreshed, err := m.refresh(ctx, rec)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

func (m *Manager) refresh(ctx context.Context, rec *storage.TokenRecord) (*storage.TokenRecord, error) {
	if rec.RefreshToken == "" {
		return nil, errors.CapabilityError(fmt.Sprintf("%s token expired and no refresh token stored", rec.Provider), nil)
	}
	endpoint, ok := m.registry.Endpoint(rec.Provider)
	if !ok {
		return nil, errors.CapabilityError(fmt.Sprintf("%s token expired and no refresh endpoint configured", rec.Provider), nil)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {rec.RefreshToken},
		"client_id":     {endpoint.ClientID},
		"client_secret": {endpoint.ClientSecret},
	}

	resp, err := m.client.PostForm(ctx, endpoint.TokenURL, form, nil)
	if err != nil {
		return nil, errors.CapabilityError(fmt.Sprintf("refresh %s token", rec.Provider), err)
	}

	body, ok := resp.BodyMap()
	if !ok {
		return nil, errors.CapabilityError(fmt.Sprintf("unexpected %s token response", rec.Provider), nil)
	}
	accessToken, _ := body["access_token"].(string)
	if accessToken == "" {
		return nil, errors.CapabilityError(fmt.Sprintf("%s token response missing access_token", rec.Provider), nil)
	}

	rec.AccessToken = accessToken
	// providers may rotate the refresh token; keep the old one otherwise
	if newRefresh, _ := body["refresh_token"].(string); newRefresh != "" {
		rec.RefreshToken = newRefresh
	}
	rec.ExpiresAt = expiryFrom(body, m.now())

	if err := m.store.SaveUserToken(ctx, rec); err != nil {
		return nil, err
	}

	m.logger.Info("Refreshed OAuth token",
		logging.Field{Key: "provider", Value: rec.Provider},
		logging.Field{Key: "user_id", Value: rec.UserID})
	return rec, nil
}

// expiryFrom reads the token lifetime from a refresh response, preferring
// the absolute expires_at over the relative expires_in.
func expiryFrom(body map[string]interface{}, now time.Time) time.Time {
	if at, ok := body["expires_at"].(float64); ok {
		return time.Unix(int64(at), 0).UTC()
	}
	if in, ok := body["expires_in"].(float64); ok {
		return now.Add(time.Duration(in) * time.Second).UTC()
	}
	return time.Time{}
}
