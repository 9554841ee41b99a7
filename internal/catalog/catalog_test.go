package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"workflow-engine/internal/workflow"
)

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New([]Capability{
		{Service: "discord", Event: "list_guilds", Kind: workflow.StepTypeAction},
		{Service: "discord", Event: "list_guilds", Kind: workflow.StepTypeAction},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNew_RejectsMalformedEntries(t *testing.T) {
	_, err := New([]Capability{{Service: "", Event: "x", Kind: workflow.StepTypeAction}})
	assert.Error(t, err)

	_, err = New([]Capability{{Service: "a", Event: "b", Kind: "transformation"}})
	assert.Error(t, err)

	_, err = New([]Capability{{
		Service: "a", Event: "b",
		Kind: workflow.StepTypeReaction, Trigger: TriggerPush,
	}})
	assert.Error(t, err, "reactions cannot be triggers")
}

func TestLookup(t *testing.T) {
	reg := Default()

	cap, ok := reg.Lookup("twitch", "stream.online")
	require.True(t, ok)
	assert.Equal(t, TriggerPush, cap.Trigger)
	assert.Equal(t, "broadcaster_user_id", cap.CorrelationKey)
	assert.Equal(t, CorrelateOnParam, cap.CorrelationSource)

	_, ok = reg.Lookup("twitch", "stream.offline")
	assert.False(t, ok)
}

func TestDefault_CorrelationKeys(t *testing.T) {
	reg := Default()

	tests := []struct {
		service, event string
		key            string
		source         CorrelationSource
	}{
		{"discord", "member_join", "guild_id", CorrelateOnParam},
		{"twitch", "channel.follow", "broadcaster_user_id", CorrelateOnParam},
		{"faceit", "match_finished", "player_id", CorrelateOnParam},
		{"timer", "interval", "step_id", CorrelateOnStepID},
	}

	for _, tt := range tests {
		cap, ok := reg.Lookup(tt.service, tt.event)
		require.True(t, ok, "%s.%s missing", tt.service, tt.event)
		assert.Equal(t, tt.key, cap.CorrelationKey, cap.Key())
		assert.Equal(t, tt.source, cap.CorrelationSource, cap.Key())
	}
}

func TestDefault_ReactionsHaveNoTriggerMode(t *testing.T) {
	for _, cap := range Default().All() {
		if cap.Kind == workflow.StepTypeReaction {
			assert.Equal(t, TriggerNone, cap.Trigger, cap.Key())
		}
	}
}

func TestAll_SortedAndComplete(t *testing.T) {
	reg := Default()
	all := reg.All()

	assert.Equal(t, reg.Count(), len(all))
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Key(), all[i].Key())
	}
}
