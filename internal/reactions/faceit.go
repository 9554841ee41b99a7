package reactions

import (
	"context"
	"fmt"

	"workflow-engine/internal/common/errors"
)

// faceitSendRoomMessage posts a chat message into a match room using the
// user's stored FACEIT credential.
func (d *Deps) faceitSendRoomMessage(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error) {
	roomID, ok := textParam(params, "room_id")
	if !ok {
		return nil, errors.CapabilityError("missing room_id", nil)
	}
	body, ok := textParam(params, "body", "message")
	if !ok {
		return nil, errors.CapabilityError("missing body", nil)
	}

	token, err := d.Tokens.Token(ctx, userID, "faceit")
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/chat/rooms/%s/messages", d.FaceitBaseURL, roomID)
	resp, err := d.Client.PostJSON(ctx, url, map[string]interface{}{"body": body}, token, nil)
	if err != nil {
		return nil, errors.CapabilityError("send faceit room message", err)
	}

	respBody, _ := resp.BodyMap()
	return map[string]interface{}{
		"status":     "Message sent",
		"message_id": respBody["id"],
	}, nil
}
