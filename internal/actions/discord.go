package actions

import (
	"context"
	"strings"

	"workflow-engine/internal/common/errors"
)

// discordListGuilds lists the guilds the user belongs to, rendered as one
// name per line with an owner marker.
func (d *Deps) discordListGuilds(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error) {
	token, err := d.Tokens.Token(ctx, userID, "discord")
	if err != nil {
		return nil, err
	}

	resp, err := d.Client.Get(ctx, d.DiscordBaseURL+"/users/@me/guilds", token, nil)
	if err != nil {
		return nil, errors.CapabilityError("fetch discord guilds", err)
	}

	guilds, ok := resp.Body.([]interface{})
	if !ok {
		return nil, errors.CapabilityError("unexpected discord guilds response", nil)
	}

	var lines []string
	for _, raw := range guilds {
		guild, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := guild["name"].(string)
		if name == "" {
			name = "Unknown guild"
		}
		if owner, _ := guild["owner"].(bool); owner {
			name += " (owner)"
		}
		lines = append(lines, name)
	}

	return map[string]interface{}{"text": strings.Join(lines, "\n")}, nil
}
