package reactions

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"workflow-engine/internal/common/errors"
)

// googleSendMail sends a plain-text email through the user's Gmail account.
func (d *Deps) googleSendMail(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error) {
	to, ok := textParam(params, "to")
	if !ok {
		return nil, errors.CapabilityError("missing to", nil)
	}
	subject, ok := textParam(params, "subject")
	if !ok {
		return nil, errors.CapabilityError("missing subject", nil)
	}
	content, ok := textParam(params, "content")
	if !ok {
		return nil, errors.CapabilityError("missing content", nil)
	}

	token, err := d.Tokens.Token(ctx, userID, "google")
	if err != nil {
		return nil, err
	}

	raw := base64.URLEncoding.EncodeToString(mimeText(to, subject, content))
	resp, err := d.Client.PostJSON(ctx, d.GoogleBaseURL+"/gmail/v1/users/me/messages/send",
		map[string]interface{}{"raw": raw}, token, nil)
	if err != nil {
		return nil, errors.CapabilityError("send mail", err)
	}

	body, _ := resp.BodyMap()
	return map[string]interface{}{
		"status":     "Email sent",
		"message_id": body["id"],
	}, nil
}

// mimeText builds a minimal RFC 2822 plain-text message.
func mimeText(to, subject, content string) []byte {
	msg := fmt.Sprintf("Content-Type: text/plain; charset=\"utf-8\"\r\nMIME-Version: 1.0\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", to, subject, content)
	return []byte(msg)
}

// googleCalendarEvent creates an all-day calendar event starting today.
func (d *Deps) googleCalendarEvent(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error) {
	title, ok := textParam(params, "title")
	if !ok {
		return nil, errors.CapabilityError("missing title", nil)
	}

	token, err := d.Tokens.Token(ctx, userID, "google")
	if err != nil {
		return nil, err
	}

	calendarID, ok := textParam(params, "calendar_id")
	if !ok {
		calendarID = "primary"
	}

	today := time.Now().UTC()
	tomorrow := today.AddDate(0, 0, 1)
	event := map[string]interface{}{
		"summary": title,
		"start":   map[string]interface{}{"date": today.Format("2006-01-02")},
		"end":     map[string]interface{}{"date": tomorrow.Format("2006-01-02")},
	}
	if description, ok := textParam(params, "description"); ok {
		event["description"] = description
	}

	url := fmt.Sprintf("%s/calendar/v3/calendars/%s/events", d.GoogleBaseURL, calendarID)
	resp, err := d.Client.PostJSON(ctx, url, event, token, nil)
	if err != nil {
		return nil, errors.CapabilityError("create calendar event", err)
	}

	body, _ := resp.BodyMap()
	return map[string]interface{}{
		"status":   "Event created successfully",
		"event_id": body["id"],
		"htmlLink": body["htmlLink"],
	}, nil
}
