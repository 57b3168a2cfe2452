package model

// Intent is the classified purpose of a customer message.
type Intent string

const (
	// Music control
	IntentVolumeAdjust   Intent = "volume_adjust"
	IntentPlaylistChange Intent = "playlist_change"
	IntentMusicStart     Intent = "music_start"
	IntentMusicStop      Intent = "music_stop"
	IntentScheduleMusic  Intent = "schedule_music"

	// Troubleshooting
	IntentMusicNotPlaying Intent = "music_not_playing"
	IntentAppIssue        Intent = "app_issue"
	IntentZoneIssue       Intent = "zone_issue"

	// Queries
	IntentCurrentPlaying Intent = "current_playing"
	IntentHelpRequest    Intent = "help_request"

	// Feedback & social
	IntentComplaint Intent = "complaint"
	IntentGreeting  Intent = "greeting"
	IntentThanks    Intent = "thanks"

	IntentUnknown Intent = "unknown"
)

// Sentiment drives tone selection and escalation logic.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	SentimentUrgent   Sentiment = "urgent"
)

// Entity types extracted from message text.
const (
	EntityZone            = "zone"
	EntityVolumeLevel     = "volume_level"
	EntityVolumeDirection = "volume_direction"
	EntityGenre           = "genre"
	EntityTime            = "time"
	EntityDuration        = "duration"
	EntityDay             = "day"
)

// Entity is a typed value extracted from the message.
type Entity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

// ResponseType suggests how the reply should be framed.
type ResponseType string

const (
	ResponseClarification        ResponseType = "clarification"
	ResponseImmediateAction      ResponseType = "immediate_action"
	ResponseEmpatheticResolution ResponseType = "empathetic_resolution"
	ResponseSocialAck            ResponseType = "social_acknowledgment"
	ResponseActionConfirmation   ResponseType = "action_confirmation"
	ResponseInformational        ResponseType = "informational"
)

// ScoredIntent pairs an intent with its match score.
type ScoredIntent struct {
	Intent Intent  `json:"intent"`
	Score  float64 `json:"score"`
}

// ClassificationResult is produced once per message and read-only afterwards.
type ClassificationResult struct {
	Intent                Intent         `json:"intent"`
	Confidence            float64        `json:"confidence"`
	Sentiment             Sentiment      `json:"sentiment"`
	Entities              []Entity       `json:"entities"`
	RequiresClarification bool           `json:"requires_clarification"`
	ResponseType          ResponseType   `json:"response_type"`
	EscalationRecommended bool           `json:"escalation_recommended"`
	Alternatives          []ScoredIntent `json:"alternatives,omitempty"`
}

// EntityValue returns the value of the first entity of the given type,
// with ok=false when absent.
func (c ClassificationResult) EntityValue(entityType string) (string, bool) {
	for _, e := range c.Entities {
		if e.Type == entityType {
			return e.Value, true
		}
	}
	return "", false
}
