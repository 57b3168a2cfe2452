package model

import (
	"fmt"
	"strings"
	"time"
)

// MessageEnvelope is one inbound customer message popped from the queue.
// Immutable once enqueued; ID is the dedup key.
type MessageEnvelope struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	VenueID        string    `json:"venue_id"`
	Channel        Channel   `json:"channel"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	ReceivedAt     time.Time `json:"received_at"`
}

// Validate rejects malformed envelopes before they enter the pipeline.
// Malformed envelopes are dropped, never retried.
func (e MessageEnvelope) Validate() error {
	switch {
	case strings.TrimSpace(e.ID) == "":
		return fmt.Errorf("envelope missing id")
	case strings.TrimSpace(e.ConversationID) == "":
		return fmt.Errorf("envelope %s missing conversation_id", e.ID)
	case strings.TrimSpace(e.VenueID) == "":
		return fmt.Errorf("envelope %s missing venue_id", e.ID)
	}
	return nil
}

// DLQEntry records a message that exhausted its retries. Immutable until
// the reconciler escalates or archives it.
type DLQEntry struct {
	OriginalEnvelope MessageEnvelope `json:"original_envelope"`
	Error            string          `json:"error"`
	FailedAt         time.Time       `json:"failed_at"`
	RetryCount       int             `json:"retry_count"`
}
