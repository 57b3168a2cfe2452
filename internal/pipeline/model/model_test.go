package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeValidate(t *testing.T) {
	valid := MessageEnvelope{ID: "m1", ConversationID: "c1", VenueID: "v1"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		env  MessageEnvelope
	}{
		{"missing id", MessageEnvelope{ConversationID: "c1", VenueID: "v1"}},
		{"missing conversation", MessageEnvelope{ID: "m1", VenueID: "v1"}},
		{"missing venue", MessageEnvelope{ID: "m1", ConversationID: "c1"}},
		{"whitespace id", MessageEnvelope{ID: "  ", ConversationID: "c1", VenueID: "v1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.env.Validate())
		})
	}
}

func TestDeadlineBreached(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.False(t, ConversationContext{}.DeadlineBreached(now), "zero deadline means no SLA")
	require.False(t, ConversationContext{SLADeadline: now.Add(time.Minute)}.DeadlineBreached(now))
	require.True(t, ConversationContext{SLADeadline: now.Add(-time.Minute)}.DeadlineBreached(now))
}

func TestCountOutcomes(t *testing.T) {
	success, failure := CountOutcomes(nil)
	require.Zero(t, success)
	require.Zero(t, failure)

	success, failure = CountOutcomes([]ActionResult{
		{Success: true}, {Success: false}, {Success: true},
	})
	require.Equal(t, 2, success)
	require.Equal(t, 1, failure)
}

func TestEntityValue(t *testing.T) {
	cls := ClassificationResult{Entities: []Entity{
		{Type: EntityZone, Value: "lobby"},
		{Type: EntityZone, Value: "patio"},
		{Type: EntityVolumeDirection, Value: "up"},
	}}

	v, ok := cls.EntityValue(EntityZone)
	require.True(t, ok)
	require.Equal(t, "lobby", v, "first entity of the type wins")

	_, ok = cls.EntityValue(EntityGenre)
	require.False(t, ok)
}
