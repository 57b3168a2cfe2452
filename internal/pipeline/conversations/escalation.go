package conversations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bma-social/support-core/internal/pipeline/model"
	logx "github.com/bma-social/support-core/pkg/logger"
)

// Escalation causes, recorded on the conversation and in the alert
// payloads.
const (
	CauseSLABreach    = "sla_breach"
	CauseClassifier   = "classifier_recommended"
	CauseVIP          = "vip_customer"
	CauseManualReview = "requires_manual_intervention"

	escalationAckText = "I'm connecting you with our support team who can better assist you. Someone will be with you shortly."
)

// Escalator hands conversations off to the human team: it flips
// ownership on the conversation row, publishes the handoff event and
// sends the customer a fixed acknowledgment.
type Escalator struct {
	conversations model.ConversationRepository
	bus           model.AlertBus
	messenger     model.Messenger
	now           func() time.Time
}

func NewEscalator(conversations model.ConversationRepository, bus model.AlertBus, messenger model.Messenger) *Escalator {
	return &Escalator{
		conversations: conversations,
		bus:           bus,
		messenger:     messenger,
		now:           time.Now,
	}
}

// Escalate performs the handoff. The status flip and the handoff event
// must succeed; the customer acknowledgment is best effort since the
// team now owns the conversation either way.
func (e *Escalator) Escalate(ctx context.Context, mctx model.ConversationContext, cause string) error {
	now := e.now().UTC()

	if err := e.conversations.MarkEscalated(ctx, mctx.ConversationID, cause, now); err != nil {
		return fmt.Errorf("mark escalated: %w", err)
	}

	payload := map[string]any{
		"escalation_id":   uuid.NewString(),
		"conversation_id": mctx.ConversationID,
		"venue_id":        mctx.VenueID,
		"customer_id":     mctx.CustomerID,
		"cause":           cause,
		"priority":        mctx.Priority,
		"is_vip":          mctx.IsVIP,
		"timestamp":       now.Format(time.RFC3339),
	}
	if err := e.bus.Publish(ctx, model.EscalationsNew, payload); err != nil {
		return fmt.Errorf("publish escalation: %w", err)
	}

	if err := e.messenger.Send(ctx, mctx.Channel, mctx.CustomerID, escalationAckText); err != nil {
		logx.Warn().
			Err(err).
			Str("conversation_id", mctx.ConversationID).
			Msg("failed to send escalation acknowledgment")
	}

	logx.Info().
		Str("conversation_id", mctx.ConversationID).
		Str("cause", cause).
		Msg("conversation escalated to team")
	return nil
}

// EscalateSLABreach raises the breach alert before the regular handoff
// so on-call sees it even if the handoff itself fails.
func (e *Escalator) EscalateSLABreach(ctx context.Context, mctx model.ConversationContext) error {
	now := e.now().UTC()
	alert := map[string]any{
		"conversation_id": mctx.ConversationID,
		"venue_id":        mctx.VenueID,
		"sla_deadline":    mctx.SLADeadline.Format(time.RFC3339),
		"breached_by":     now.Sub(mctx.SLADeadline).String(),
		"timestamp":       now.Format(time.RFC3339),
	}
	if err := e.bus.Publish(ctx, model.AlertSLABreach, alert); err != nil {
		logx.Error().
			Err(err).
			Str("conversation_id", mctx.ConversationID).
			Msg("failed to publish SLA breach alert")
	}
	return e.Escalate(ctx, mctx, CauseSLABreach)
}

// AckText is the fixed acknowledgment sent on escalation, exposed for
// callers that record the bot turn.
func AckText() string { return escalationAckText }
