package model

import (
	"context"
	"time"
)

// ZoneControl is the remote music-control service. Every call is an
// independent network operation guarded by the executor's breaker and
// rate limiter.
type ZoneControl interface {
	GetStatus(ctx context.Context, zoneID string) (*ZoneStatus, error)
	SetVolume(ctx context.Context, zoneID string, level int) error
	SetPlaylist(ctx context.Context, zoneID, catalogID string) error
	Play(ctx context.Context, zoneID string) error
	Pause(ctx context.Context, zoneID string) error
	Skip(ctx context.Context, zoneID string) error
	GetPlaylists(ctx context.Context) ([]Playlist, error)
}

// Messenger delivers replies to customers on their channel.
type Messenger interface {
	Send(ctx context.Context, channel Channel, recipient, text string) error
}

// AlertBus publishes named events for humans and downstream consumers.
type AlertBus interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Alert channels.
const (
	AlertSLABreach    = "alerts:sla_breach"
	AlertDLQ          = "alerts:dlq"
	EscalationsNew    = "escalations:new"
	EscalationsDLQ    = "escalations:dlq"
	MetricsProcessing = "metrics:message_processing"
	SendRetryChannel  = "messages:send_retry"
)

// Queue is the durable inbound message queue.
type Queue interface {
	// Pop blocks up to timeout for the next raw payload. A nil payload
	// with nil error means the timeout elapsed with nothing queued.
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// DedupStore records message IDs within a rolling window so redelivered
// envelopes are processed at most once.
type DedupStore interface {
	// FirstSeen returns true when the ID has not been seen inside the
	// window, recording it as seen.
	FirstSeen(ctx context.Context, messageID string) (bool, error)
}

// DeadLetterStore holds messages that exhausted their retries.
type DeadLetterStore interface {
	Push(ctx context.Context, entry DLQEntry) error
	// Scan returns up to limit entries without removing them.
	Scan(ctx context.Context, limit int) ([]DLQEntry, error)
	Remove(ctx context.Context, entry DLQEntry) error
	Archive(ctx context.Context, entry DLQEntry) error
}
