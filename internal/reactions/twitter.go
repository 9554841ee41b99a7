package reactions

import (
	"context"

	"workflow-engine/internal/common/errors"
)

// twitterTweet posts a tweet with the message or text parameter.
func (d *Deps) twitterTweet(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error) {
	text, ok := textParam(params, "message", "text")
	if !ok {
		return nil, errors.CapabilityError("missing text", nil)
	}

	token, err := d.Tokens.Token(ctx, userID, "twitter")
	if err != nil {
		return nil, err
	}

	resp, err := d.Client.PostJSON(ctx, d.TwitterBaseURL+"/tweets", map[string]interface{}{"text": text}, token, nil)
	if err != nil {
		return nil, errors.CapabilityError("post tweet", err)
	}

	body, _ := resp.BodyMap()
	return body, nil
}
