package actions

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"workflow-engine/internal/common/errors"
)

func (d *Deps) faceitKey() (string, error) {
	if d.FaceitAPIKey == "" {
		return "", errors.CapabilityError("faceit api key not configured", nil)
	}
	return d.FaceitAPIKey, nil
}

// faceitPlayerStats fetches a player's per-game stats.
func (d *Deps) faceitPlayerStats(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error) {
	apiKey, err := d.faceitKey()
	if err != nil {
		return nil, err
	}
	playerID, ok := stringParam(params, "player_id", "playerId")
	if !ok {
		return nil, errors.CapabilityError("missing player_id", nil)
	}
	gameID, ok := stringParam(params, "game_id", "gameId")
	if !ok {
		return nil, errors.CapabilityError("missing game_id", nil)
	}

	query := url.Values{}
	queryEcho := map[string]interface{}{}
	if limit, found, err := intParam(params, 1, 100, "limit"); err != nil {
		return nil, errors.CapabilityError(err.Error(), nil)
	} else if found {
		query.Set("limit", strconv.Itoa(limit))
		queryEcho["limit"] = limit
	}
	for _, key := range []string{"from", "to"} {
		v, found, err := intParam(params, math.MinInt, math.MaxInt, key)
		if err != nil {
			return nil, errors.CapabilityError(err.Error(), nil)
		}
		if found {
			query.Set(key, strconv.Itoa(v))
			queryEcho[key] = v
		}
	}

	requestURL := fmt.Sprintf("%s/players/%s/games/%s/stats", d.FaceitBaseURL, playerID, gameID)
	if encoded := query.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	resp, err := d.Client.Get(ctx, requestURL, apiKey, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, errors.CapabilityError("fetch faceit stats", err)
	}

	return map[string]interface{}{
		"player_id": playerID,
		"game_id":   gameID,
		"query":     queryEcho,
		"stats":     resp.Body,
	}, nil
}

// faceitPlayerRanking fetches a player's regional ranking.
func (d *Deps) faceitPlayerRanking(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error) {
	apiKey, err := d.faceitKey()
	if err != nil {
		return nil, err
	}
	playerID, ok := stringParam(params, "player_id", "playerId")
	if !ok {
		return nil, errors.CapabilityError("missing player_id", nil)
	}
	gameID, ok := stringParam(params, "game_id", "gameId")
	if !ok {
		return nil, errors.CapabilityError("missing game_id", nil)
	}
	region, ok := stringParam(params, "region")
	if !ok {
		return nil, errors.CapabilityError("missing region", nil)
	}

	query := url.Values{}
	queryEcho := map[string]interface{}{}
	if country, found := stringParam(params, "country"); found {
		query.Set("country", country)
		queryEcho["country"] = country
	}
	if limit, found, err := intParam(params, 1, 100, "limit"); err != nil {
		return nil, errors.CapabilityError(err.Error(), nil)
	} else if found {
		query.Set("limit", strconv.Itoa(limit))
		queryEcho["limit"] = limit
	}

	requestURL := fmt.Sprintf("%s/rankings/games/%s/regions/%s/players/%s", d.FaceitBaseURL, gameID, region, playerID)
	if encoded := query.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	resp, err := d.Client.Get(ctx, requestURL, apiKey, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, errors.CapabilityError("fetch faceit ranking", err)
	}

	return map[string]interface{}{
		"player_id": playerID,
		"game_id":   gameID,
		"region":    region,
		"query":     queryEcho,
		"ranking":   resp.Body,
	}, nil
}

// faceitHubDetails fetches a hub's details, optionally expanded.
func (d *Deps) faceitHubDetails(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error) {
	apiKey, err := d.faceitKey()
	if err != nil {
		return nil, err
	}
	hubID, ok := stringParam(params, "hub_id", "hubId")
	if !ok {
		return nil, errors.CapabilityError("missing hub_id", nil)
	}

	query := url.Values{}
	queryEcho := map[string]interface{}{}
	if raw, present := params["expanded"]; present && raw != nil {
		expanded, ok := stringList(raw)
		if !ok {
			return nil, errors.CapabilityError("invalid expanded parameter", nil)
		}
		for _, item := range expanded {
			query.Add("expanded", item)
		}
		if len(expanded) > 0 {
			queryEcho["expanded"] = expanded
		}
	}

	requestURL := fmt.Sprintf("%s/hubs/%s", d.FaceitBaseURL, hubID)
	if encoded := query.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	resp, err := d.Client.Get(ctx, requestURL, apiKey, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, errors.CapabilityError("fetch faceit hub", err)
	}

	return map[string]interface{}{
		"hub_id": hubID,
		"query":  queryEcho,
		"hub":    resp.Body,
	}, nil
}
