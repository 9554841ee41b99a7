package catalog

import "workflow-engine/internal/workflow"

// Default returns the built-in capability table. Correlation keys are the
// fields each provider actually delivers: discord guild ids, twitch
// broadcaster ids, faceit player ids, and the firing step's id for timers.
func Default() *Registry {
	return MustNew([]Capability{
		// Push triggers (twitch EventSub)
		{
			Service: "twitch", Event: "stream.online",
			Title: "Streamer goes live",
			Kind:  workflow.StepTypeAction, Trigger: TriggerPush,
			CorrelationKey: "broadcaster_user_id", CorrelationSource: CorrelateOnParam,
			RequiredParams: []string{"username_streamer"},
		},
		{
			Service: "twitch", Event: "channel.follow",
			Title: "New follower",
			Kind:  workflow.StepTypeAction, Trigger: TriggerPush,
			CorrelationKey: "broadcaster_user_id", CorrelationSource: CorrelateOnParam,
			RequiredParams: []string{"username_streamer"},
		},
		{
			Service: "twitch", Event: "channel.subscribe",
			Title: "New subscriber",
			Kind:  workflow.StepTypeAction, Trigger: TriggerPush,
			CorrelationKey: "broadcaster_user_id", CorrelationSource: CorrelateOnParam,
			RequiredParams: []string{"username_streamer"},
		},

		// Event triggers delivered without a managed subscription
		{
			Service: "discord", Event: "member_join",
			Title: "Member joins a server",
			Kind:  workflow.StepTypeAction, Trigger: TriggerEvent,
			CorrelationKey: "guild_id", CorrelationSource: CorrelateOnParam,
			OptionalParams: []string{"guild_id"},
		},
		{
			Service: "faceit", Event: "match_finished",
			Title: "Match finished",
			Kind:  workflow.StepTypeAction, Trigger: TriggerEvent,
			CorrelationKey: "player_id", CorrelationSource: CorrelateOnParam,
			OptionalParams: []string{"player_id"},
		},

		// Timer trigger
		{
			Service: "timer", Event: "interval",
			Title: "Every N minutes",
			Kind:  workflow.StepTypeAction, Trigger: TriggerTimer,
			CorrelationKey: "step_id", CorrelationSource: CorrelateOnStepID,
			OptionalParams: []string{"interval_minutes", "minutes", "mins", "interval", "every"},
		},

		// Getter actions
		{
			Service: "discord", Event: "list_guilds",
			Title: "List my Discord servers",
			Kind:  workflow.StepTypeAction,
		},
		{
			Service: "google", Event: "recent_emails_from_sender",
			Title: "Recent emails from a sender",
			Kind:  workflow.StepTypeAction,
			RequiredParams: []string{"sender"},
			OptionalParams: []string{"limit"},
		},
		{
			Service: "faceit", Event: "retrieve_player_stats",
			Title: "Player match stats",
			Kind:  workflow.StepTypeAction,
			RequiredParams: []string{"player_id", "game_id"},
			OptionalParams: []string{"limit", "from", "to"},
		},
		{
			Service: "faceit", Event: "retrieve_player_ranking",
			Title: "Player ranking",
			Kind:  workflow.StepTypeAction,
			RequiredParams: []string{"player_id", "game_id", "region"},
			OptionalParams: []string{"country", "limit"},
		},
		{
			Service: "faceit", Event: "retrieve_hub_details",
			Title: "Hub details",
			Kind:  workflow.StepTypeAction,
			RequiredParams: []string{"hub_id"},
			OptionalParams: []string{"expanded"},
		},

		// Reactions
		{
			Service: "twitter", Event: "tweet",
			Title: "Post a tweet",
			Kind:  workflow.StepTypeReaction,
			RequiredParams: []string{"message"},
		},
		{
			Service: "google", Event: "send_mail",
			Title: "Send an email",
			Kind:  workflow.StepTypeReaction,
			RequiredParams: []string{"to", "subject", "content"},
		},
		{
			Service: "google", Event: "create_calendar_event",
			Title: "Create a calendar event",
			Kind:  workflow.StepTypeReaction,
			RequiredParams: []string{"title"},
			OptionalParams: []string{"description", "calendar_id"},
		},
		{
			Service: "discord", Event: "send_channel_message",
			Title: "Send a channel message",
			Kind:  workflow.StepTypeReaction,
			RequiredParams: []string{"channel_id", "message"},
		},
		{
			Service: "faceit", Event: "send_room_message",
			Title: "Send a chat room message",
			Kind:  workflow.StepTypeReaction,
			RequiredParams: []string{"room_id", "body"},
		},
		{
			Service: "spotify", Event: "play_playlist",
			Title: "Play a playlist",
			Kind:  workflow.StepTypeReaction,
			RequiredParams: []string{"playlist_id"},
		},
		{
			Service: "spotify", Event: "play_track",
			Title: "Play a track",
			Kind:  workflow.StepTypeReaction,
			RequiredParams: []string{"track_id"},
		},
	})
}
