// Package webhooks keeps externally-registered push subscriptions in sync
// with the workflow steps that declare push triggers, and compiles
// client-supplied step definitions into stored steps.
package webhooks

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"workflow-engine/internal/common/errors"
	commonhttp "workflow-engine/internal/common/http"
	"workflow-engine/internal/common/logging"
)

const appTokenCacheKey = "twitch:app_token"

// TokenCache caches short-lived app tokens; a nil cache disables caching.
type TokenCache interface {
	GetCached(ctx context.Context, key string) string
	SetCached(ctx context.Context, key, value string, ttl time.Duration) error
}

// TwitchConfig holds the EventSub client settings. Base URLs default to the
// real Twitch endpoints and exist for tests.
type TwitchConfig struct {
	ClientID      string
	ClientSecret  string
	WebhookSecret string
	CallbackURL   string

	AuthBaseURL  string
	HelixBaseURL string
}

// TwitchClient talks to the Twitch Helix API with an app access token.
type TwitchClient struct {
	config TwitchConfig
	client *commonhttp.Client
	cache  TokenCache
	logger logging.Logger
}

// NewTwitchClient creates a Twitch EventSub client.
func NewTwitchClient(config TwitchConfig, client *commonhttp.Client, cache TokenCache) *TwitchClient {
	if config.AuthBaseURL == "" {
		config.AuthBaseURL = "https://id.twitch.tv"
	}
	if config.HelixBaseURL == "" {
		config.HelixBaseURL = "https://api.twitch.tv/helix"
	}
	return &TwitchClient{
		config: config,
		client: client,
		cache:  cache,
		logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "twitch"}),
	}
}

// appAccessToken returns a client-credentials app token, cached until close
// to its expiry.
func (t *TwitchClient) appAccessToken(ctx context.Context) (string, error) {
	if t.cache != nil {
		if token := t.cache.GetCached(ctx, appTokenCacheKey); token != "" {
			return token, nil
		}
	}

	form := url.Values{
		"client_id":     {t.config.ClientID},
		"client_secret": {t.config.ClientSecret},
		"grant_type":    {"client_credentials"},
	}
	resp, err := t.client.PostForm(ctx, t.config.AuthBaseURL+"/oauth2/token", form, nil)
	if err != nil {
		return "", errors.SubscriptionError("get twitch app access token", err)
	}

	body, _ := resp.BodyMap()
	token, _ := body["access_token"].(string)
	if token == "" {
		return "", errors.SubscriptionError("twitch token response missing access_token", nil)
	}

	if t.cache != nil {
		ttl := time.Hour
		if expiresIn, ok := body["expires_in"].(float64); ok && expiresIn > 120 {
			ttl = time.Duration(expiresIn-60) * time.Second
		}
		if err := t.cache.SetCached(ctx, appTokenCacheKey, token, ttl); err != nil {
			t.logger.Warn("Failed to cache twitch app token", logging.Field{Key: "error", Value: err.Error()})
		}
	}
	return token, nil
}

func (t *TwitchClient) helixHeaders() map[string]string {
	return map[string]string{"Client-Id": t.config.ClientID}
}

// UserIDByLogin resolves a streamer login name to a numeric broadcaster id.
func (t *TwitchClient) UserIDByLogin(ctx context.Context, login string) (string, error) {
	token, err := t.appAccessToken(ctx)
	if err != nil {
		return "", err
	}

	requestURL := fmt.Sprintf("%s/users?login=%s", t.config.HelixBaseURL, url.QueryEscape(login))
	resp, err := t.client.Get(ctx, requestURL, token, t.helixHeaders())
	if err != nil {
		return "", errors.SubscriptionError("look up twitch user", err)
	}

	body, _ := resp.BodyMap()
	users, _ := body["data"].([]interface{})
	if len(users) == 0 {
		return "", errors.SubscriptionError(fmt.Sprintf("streamer %q not found", login), nil)
	}
	user, _ := users[0].(map[string]interface{})
	id, _ := user["id"].(string)
	if id == "" {
		return "", errors.SubscriptionError(fmt.Sprintf("streamer %q has no id", login), nil)
	}
	return id, nil
}

// CreateSubscription registers an EventSub webhook subscription and returns
// its id.
func (t *TwitchClient) CreateSubscription(ctx context.Context, eventType, broadcasterID string) (string, error) {
	token, err := t.appAccessToken(ctx)
	if err != nil {
		return "", err
	}

	subscription := map[string]interface{}{
		"type":    eventType,
		"version": "2",
		"condition": map[string]interface{}{
			"broadcaster_user_id": broadcasterID,
		},
		"transport": map[string]interface{}{
			"method":   "webhook",
			"callback": t.config.CallbackURL,
			"secret":   t.config.WebhookSecret,
		},
	}

	resp, err := t.client.PostJSON(ctx, t.config.HelixBaseURL+"/eventsub/subscriptions", subscription, token, t.helixHeaders())
	if err != nil {
		return "", errors.SubscriptionError(fmt.Sprintf("create %s subscription", eventType), err)
	}

	body, _ := resp.BodyMap()
	subs, _ := body["data"].([]interface{})
	if len(subs) == 0 {
		return "", errors.SubscriptionError("subscription response missing data", nil)
	}
	sub, _ := subs[0].(map[string]interface{})
	id, _ := sub["id"].(string)
	if id == "" {
		return "", errors.SubscriptionError("subscription response missing id", nil)
	}

	t.logger.Info("Twitch webhook created",
		logging.Field{Key: "event_type", Value: eventType},
		logging.Field{Key: "webhook_id", Value: id})
	return id, nil
}

// DeleteSubscription removes an EventSub subscription.
func (t *TwitchClient) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	token, err := t.appAccessToken(ctx)
	if err != nil {
		return err
	}

	requestURL := fmt.Sprintf("%s/eventsub/subscriptions?id=%s", t.config.HelixBaseURL, url.QueryEscape(subscriptionID))
	if _, err := t.client.Delete(ctx, requestURL, token, t.helixHeaders()); err != nil {
		return errors.SubscriptionError(fmt.Sprintf("delete subscription %s", subscriptionID), err)
	}
	return nil
}
