package reactions

import (
	"context"
	"fmt"
	"net/http"

	"workflow-engine/internal/common/errors"
	commonhttp "workflow-engine/internal/common/http"
)

// discordSendMessage posts a message to a channel using the shared bot
// token rather than a per-user credential.
func (d *Deps) discordSendMessage(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error) {
	channelID, ok := textParam(params, "channel_id")
	if !ok {
		return nil, errors.CapabilityError("missing channel_id", nil)
	}
	message, ok := textParam(params, "message", "content")
	if !ok {
		return nil, errors.CapabilityError("missing message", nil)
	}
	if d.DiscordBotToken == "" {
		return nil, errors.CapabilityError("discord bot token not configured", nil)
	}

	resp, err := d.Client.Request(ctx, &commonhttp.RequestOptions{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/channels/%s/messages", d.DiscordBaseURL, channelID),
		Body:   jsonBody(map[string]interface{}{"content": message}),
		Headers: map[string]string{
			"Authorization": "Bot " + d.DiscordBotToken,
			"Content-Type":  "application/json",
		},
	})
	if err != nil {
		return nil, errors.CapabilityError("send discord message", err)
	}

	body, _ := resp.BodyMap()
	return map[string]interface{}{
		"status":     "Message sent",
		"message_id": body["id"],
	}, nil
}
