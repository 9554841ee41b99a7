package actions

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"workflow-engine/internal/common/errors"
)

const defaultEmailLimit = 20

// googleRecentEmails lists recent inbox messages from a given sender,
// rendered as "- subject (date)" lines.
func (d *Deps) googleRecentEmails(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error) {
	sender, ok := stringParam(params, "sender", "email", "from")
	if !ok {
		return nil, errors.CapabilityError("missing sender email (expected param 'sender')", nil)
	}
	limit, found, err := intParam(params, 1, defaultEmailLimit, "limit", "count")
	if err != nil || !found {
		limit = defaultEmailLimit
	}

	token, err := d.Tokens.Token(ctx, userID, "google")
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"q":          {"from:" + sender},
		"maxResults": {strconv.Itoa(limit)},
		"labelIds":   {"INBOX"},
	}
	listURL := fmt.Sprintf("%s/gmail/v1/users/me/messages?%s", d.GoogleBaseURL, query.Encode())
	resp, err := d.Client.Get(ctx, listURL, token, nil)
	if err != nil {
		return nil, errors.CapabilityError("fetch emails", err)
	}

	body, _ := resp.BodyMap()
	metas, _ := body["messages"].([]interface{})

	var lines []string
	for _, raw := range metas {
		meta, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		messageID, _ := meta["id"].(string)
		if messageID == "" {
			continue
		}

		detailQuery := url.Values{
			"format": {"metadata"},
		}
		detailQuery.Add("metadataHeaders", "Subject")
		detailQuery.Add("metadataHeaders", "Date")
		detailQuery.Add("metadataHeaders", "From")
		detailQuery.Add("metadataHeaders", "To")
		detailURL := fmt.Sprintf("%s/gmail/v1/users/me/messages/%s?%s", d.GoogleBaseURL, messageID, detailQuery.Encode())

		detail, err := d.Client.Get(ctx, detailURL, token, nil)
		if err != nil {
			// a single unreadable message does not fail the listing
			continue
		}
		detailBody, ok := detail.BodyMap()
		if !ok {
			continue
		}
		headers := headerMap(detailBody)
		subject := headers["Subject"]
		if subject == "" {
			subject = "(no subject)"
		}
		date := headers["Date"]
		if date == "" {
			date = "unknown date"
		}
		lines = append(lines, fmt.Sprintf("- %s (%s)", subject, date))
	}

	if len(lines) == 0 {
		return map[string]interface{}{"text": "No emails found."}, nil
	}
	return map[string]interface{}{"text": strings.Join(lines, "\n")}, nil
}

func headerMap(message map[string]interface{}) map[string]string {
	out := make(map[string]string)
	payload, _ := message["payload"].(map[string]interface{})
	headers, _ := payload["headers"].([]interface{})
	for _, raw := range headers {
		h, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := h["name"].(string)
		value, _ := h["value"].(string)
		if name != "" {
			out[name] = value
		}
	}
	return out
}
