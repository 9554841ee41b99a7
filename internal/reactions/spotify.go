package reactions

import (
	"context"
	"fmt"

	"workflow-engine/internal/common/errors"
)

// spotifyPlayPlaylist starts playback of a playlist on the user's active
// device.
func (d *Deps) spotifyPlayPlaylist(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error) {
	playlistID, ok := textParam(params, "playlist_id")
	if !ok {
		return nil, errors.CapabilityError("missing playlist_id", nil)
	}
	return d.play(ctx, userID, map[string]interface{}{
		"context_uri": fmt.Sprintf("spotify:playlist:%s", playlistID),
	})
}

// spotifyPlayTrack starts playback of a single track.
func (d *Deps) spotifyPlayTrack(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error) {
	trackID, ok := textParam(params, "track_id")
	if !ok {
		return nil, errors.CapabilityError("missing track_id", nil)
	}
	return d.play(ctx, userID, map[string]interface{}{
		"uris": []string{fmt.Sprintf("spotify:track:%s", trackID)},
	})
}

func (d *Deps) play(ctx context.Context, userID int64, payload map[string]interface{}) (map[string]interface{}, error) {
	token, err := d.Tokens.Token(ctx, userID, "spotify")
	if err != nil {
		return nil, err
	}

	resp, err := d.Client.PutJSON(ctx, d.SpotifyBaseURL+"/me/player/play", payload, token, nil)
	if err != nil {
		return nil, errors.CapabilityError("start spotify playback", err)
	}

	// a 204 from the player endpoint has no body
	body, ok := resp.BodyMap()
	if !ok {
		return map[string]interface{}{"status": "Playback started"}, nil
	}
	return body, nil
}
