package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/engine"
	"workflow-engine/internal/signature"
)

// eventSubEnvelope is the outer shape of every EventSub delivery.
type eventSubEnvelope struct {
	Challenge    string                 `json:"challenge,omitempty"`
	Subscription eventSubMeta           `json:"subscription"`
	Event        map[string]interface{} `json:"event"`
}

type eventSubMeta struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// HandleTwitchEvent is the EventSub callback. Deliveries are verified
// against the shared secret, verification challenges are echoed back as
// plain text, notifications are normalized and dispatched.
func (h *Handlers) HandleTwitchEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if err := h.verifier.Verify(r, body); err != nil {
		h.logger.Warn("rejected eventsub delivery", logging.Field{Key: "error", Value: err.Error()})
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	var envelope eventSubEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	switch r.Header.Get(signature.HeaderMessageType) {
	case signature.MessageTypeVerification:
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(envelope.Challenge))
		return
	case signature.MessageTypeRevocation:
		h.logger.Warn("eventsub subscription revoked",
			logging.Field{Key: "subscription_id", Value: envelope.Subscription.ID},
			logging.Field{Key: "type", Value: envelope.Subscription.Type})
		w.WriteHeader(http.StatusNoContent)
		return
	}

	payload := normalizeTwitchEvent(envelope.Subscription.Type, envelope.Event)
	if payload == nil {
		h.logger.Debug("ignoring unhandled eventsub type",
			logging.Field{Key: "type", Value: envelope.Subscription.Type})
		w.WriteHeader(http.StatusNoContent)
		return
	}

	results, err := h.dispatcher.Dispatch(r.Context(), "twitch", envelope.Subscription.Type, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTrace(w, results)
}

// normalizeTwitchEvent flattens an EventSub notification into the payload
// shape trigger correlation and parameter links expect. Returns nil for
// subscription types with no mapping.
func normalizeTwitchEvent(subType string, event map[string]interface{}) map[string]interface{} {
	broadcasterID, _ := event["broadcaster_user_id"].(string)
	broadcasterName, _ := event["broadcaster_user_name"].(string)

	switch subType {
	case "stream.online":
		return map[string]interface{}{
			"event":                 "stream.online",
			"broadcaster_user_id":   broadcasterID,
			"broadcaster_user_name": broadcasterName,
			"message":               fmt.Sprintf("%s is now live!", broadcasterName),
		}
	case "channel.follow":
		followerName, _ := event["user_name"].(string)
		return map[string]interface{}{
			"event":               "new.follow",
			"broadcaster_user_id": broadcasterID,
			"follower_name":       followerName,
			"message":             fmt.Sprintf("%s just followed %s!", followerName, broadcasterName),
		}
	case "channel.subscribe":
		subscriberName, _ := event["user_name"].(string)
		tier, _ := event["tier"].(string)
		if tier == "" {
			tier = "1000"
		}
		return map[string]interface{}{
			"event":               "new.subscriber",
			"broadcaster_user_id": broadcasterID,
			"subscriber_name":     subscriberName,
			"tier":                tier,
			"message":             fmt.Sprintf("%s just subscribed to %s!", subscriberName, broadcasterName),
		}
	}
	return nil
}

// HandleDiscordEvent accepts pre-normalized events from the companion bot,
// authenticated by a shared secret header.
func (h *Handlers) HandleDiscordEvent(w http.ResponseWriter, r *http.Request) {
	if h.botSecret == "" || r.Header.Get("bot-token") != h.botSecret {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	event, _ := payload["event"].(string)
	if event == "" {
		http.Error(w, "missing event", http.StatusBadRequest)
		return
	}

	results, err := h.dispatcher.Dispatch(r.Context(), "discord", event, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTrace(w, results)
}

// HandleFaceitEvent accepts faceit match webhooks. A finished match fans
// out into one match_finished dispatch per player, each carrying that
// player's score, opponent score and winner flag.
func (h *Handlers) HandleFaceitEvent(w http.ResponseWriter, r *http.Request) {
	var delivery struct {
		Event   string                 `json:"event"`
		Type    string                 `json:"type"`
		Payload map[string]interface{} `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&delivery); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	eventType := delivery.Event
	if eventType == "" {
		eventType = delivery.Type
	}
	if eventType != "match_status_finished" {
		writeTrace(w, nil)
		return
	}

	var results []engine.StepResult
	for _, playerEvent := range faceitPlayerEvents(delivery.Payload) {
		trace, err := h.dispatcher.Dispatch(r.Context(), "faceit", "match_finished", playerEvent)
		if err != nil {
			writeError(w, err)
			return
		}
		results = append(results, trace...)
	}
	writeTrace(w, results)
}

// faceitPlayerEvents expands a finished-match payload into per-player
// events. Scores live in payload.results.score keyed by faction id, the
// winner in results.winner, and players under each team's "players" list.
func faceitPlayerEvents(payload map[string]interface{}) []map[string]interface{} {
	results, _ := payload["results"].(map[string]interface{})
	scores := factionScores(results)
	winner := winningFaction(results)

	teams, _ := payload["teams"].([]interface{})

	var events []map[string]interface{}
	for _, raw := range teams {
		team, _ := raw.(map[string]interface{})
		if team == nil {
			continue
		}
		factionID := stringField(team, "faction_id", "faction", "team_id")
		pair := scores[factionID]
		isWinner := winner != "" && factionID != "" && strings.EqualFold(factionID, winner)

		players, _ := team["players"].([]interface{})
		for _, member := range players {
			player, _ := member.(map[string]interface{})
			if player == nil {
				continue
			}
			playerID := stringField(player, "player_id", "id")
			if playerID == "" {
				continue
			}
			stats := player["player_stats"]
			if stats == nil {
				stats = player["stats"]
			}
			if stats == nil {
				stats = map[string]interface{}{}
			}
			events = append(events, map[string]interface{}{
				"event":          "match_finished",
				"player_id":      playerID,
				"team_score":     pair.team,
				"opponent_score": pair.opponent,
				"is_winner":      isWinner,
				"player_stats":   stats,
			})
		}
	}
	return events
}

// scorePair is one faction's score next to its opponent's. Either side is
// nil when the results block doesn't carry it.
type scorePair struct {
	team     interface{}
	opponent interface{}
}

// factionScores reads results.score, a map of faction id to score value.
// With exactly two factions each side also gets the other's score as its
// opponent score; otherwise the opponent side stays nil.
func factionScores(results map[string]interface{}) map[string]scorePair {
	raw, _ := results["score"].(map[string]interface{})
	pairs := make(map[string]scorePair, len(raw))
	if len(raw) == 2 {
		factions := make([]string, 0, 2)
		for faction := range raw {
			factions = append(factions, faction)
		}
		a, b := factions[0], factions[1]
		pairs[a] = scorePair{team: scoreValue(raw[a]), opponent: scoreValue(raw[b])}
		pairs[b] = scorePair{team: scoreValue(raw[b]), opponent: scoreValue(raw[a])}
		return pairs
	}
	for faction, value := range raw {
		pairs[faction] = scorePair{team: scoreValue(value)}
	}
	return pairs
}

// scoreValue normalizes a score entry to an int: plain numbers, numeric
// strings, or an object carrying the number under score/value/points.
// Anything else is nil.
func scoreValue(v interface{}) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		for _, key := range []string{"score", "value", "points"} {
			if nested, ok := value[key]; ok {
				return scoreValue(nested)
			}
		}
	case float64:
		return int(value)
	case int:
		return value
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return nil
}

// winningFaction reads results.winner, either a faction id string or an
// object naming it.
func winningFaction(results map[string]interface{}) string {
	switch winner := results["winner"].(type) {
	case map[string]interface{}:
		return stringField(winner, "faction_id", "team_id")
	case string:
		return winner
	}
	return ""
}

func stringField(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch value := m[key].(type) {
		case string:
			if value != "" {
				return value
			}
		case float64:
			return strconv.FormatFloat(value, 'f', -1, 64)
		}
	}
	return ""
}

func writeTrace(w http.ResponseWriter, results []engine.StepResult) {
	if results == nil {
		results = []engine.StepResult{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
