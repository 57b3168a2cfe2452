package model

import (
	"context"
	"time"
)

// Channel identifies the messaging platform a conversation lives on.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelLine     Channel = "line"
)

// ConversationStatus tracks who owns a conversation. The pipeline only
// ever moves bot_handling to waiting_team; resolution happens elsewhere.
type ConversationStatus string

const (
	StatusBotHandling ConversationStatus = "bot_handling"
	StatusWaitingTeam ConversationStatus = "waiting_team"
	StatusResolved    ConversationStatus = "resolved"
)

// Priority of a conversation, set by the upstream channel adapter.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// SenderType identifies who authored a stored message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderBot      SenderType = "bot"
	SenderTeam     SenderType = "team"
)

// StoredMessage is one persisted turn of a conversation.
type StoredMessage struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Sender         SenderType `json:"sender"`
	Content        string     `json:"content"`
	Intent         Intent     `json:"intent,omitempty"`
	Sentiment      Sentiment  `json:"sentiment,omitempty"`
	Confidence     float64    `json:"confidence,omitempty"`
	ActionCount    int        `json:"action_count,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// SessionData is the only cross-message mutable state. Owned exclusively
// by the state updater while one message is in flight.
type SessionData struct {
	LastIntent      Intent    `json:"last_intent,omitempty"`
	LastConfidence  float64   `json:"last_confidence,omitempty"`
	LastActionCount int       `json:"last_action_count,omitempty"`
	LastUpdate      time.Time `json:"last_update,omitempty"`
}

// ConversationMeta mirrors the conversation row: counters, ownership and
// escalation bookkeeping.
type ConversationMeta struct {
	ConversationID  string             `json:"conversation_id"`
	VenueID         string             `json:"venue_id"`
	Channel         Channel            `json:"channel"`
	CustomerID      string             `json:"customer_id"`
	Language        string             `json:"language"`
	ZoneIDs         []string           `json:"zone_ids"`
	Status          ConversationStatus `json:"status"`
	Priority        Priority           `json:"priority"`
	IsVIP           bool               `json:"is_vip"`
	SLADeadline     time.Time          `json:"sla_deadline"`
	MessageCount    int                `json:"message_count"`
	BotMessageCount int                `json:"bot_message_count"`
	BotConfidence   float64            `json:"bot_confidence"`
	BotEscalated    bool               `json:"bot_escalated"`
	EscalationCause string             `json:"escalation_cause,omitempty"`
	LastActivityAt  time.Time          `json:"last_activity_at"`
}

// ConversationContext is everything the pipeline needs about a
// conversation, loaded fresh for each message.
type ConversationContext struct {
	ConversationID string
	VenueID        string
	ZoneIDs        []string
	Channel        Channel
	CustomerID     string
	Language       string
	Session        SessionData
	Recent         []StoredMessage
	SLADeadline    time.Time
	Priority       Priority
	IsVIP          bool
}

// DeadlineBreached reports whether the SLA deadline has passed at now.
// A zero deadline means no SLA applies.
func (c ConversationContext) DeadlineBreached(now time.Time) bool {
	return !c.SLADeadline.IsZero() && now.After(c.SLADeadline)
}

// ConversationRepository persists conversation turns and metadata.
type ConversationRepository interface {
	// AppendBotMessage stores the bot reply. Appending the same message ID
	// twice is a no-op so a retried message never duplicates its reply.
	AppendBotMessage(ctx context.Context, msg StoredMessage) (appended bool, err error)

	// RecentMessages returns up to limit most recent turns, newest last.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]StoredMessage, error)

	// GetMeta loads the conversation row.
	GetMeta(ctx context.Context, conversationID string) (*ConversationMeta, error)

	// UpdateCounters bumps message counters and records the bot confidence.
	UpdateCounters(ctx context.Context, conversationID string, confidence float64, now time.Time) error

	// MarkEscalated transitions the conversation to waiting_team.
	MarkEscalated(ctx context.Context, conversationID, cause string, now time.Time) error
}

// SessionRepository caches per-conversation session data with a TTL.
type SessionRepository interface {
	Load(ctx context.Context, conversationID string) (SessionData, error)
	Save(ctx context.Context, conversationID string, data SessionData) error
}
