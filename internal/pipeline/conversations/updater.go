package conversations

import (
	"context"
	"fmt"
	"time"

	"github.com/bma-social/support-core/internal/pipeline/model"
	logx "github.com/bma-social/support-core/pkg/logger"
)

// Updater applies the per-message state changes after a reply is
// produced: persist the bot turn, bump the conversation counters and
// refresh the session. It is the only writer of session data, and it is
// idempotent per envelope so a retried message never double-counts.
type Updater struct {
	conversations model.ConversationRepository
	sessions      model.SessionRepository
	now           func() time.Time
}

func NewUpdater(conversations model.ConversationRepository, sessions model.SessionRepository) *Updater {
	return &Updater{
		conversations: conversations,
		sessions:      sessions,
		now:           time.Now,
	}
}

// Apply persists the outcome of one processed message. A failure here is
// fatal for the message; the caller retries the whole envelope.
func (u *Updater) Apply(ctx context.Context, env model.MessageEnvelope, cls model.ClassificationResult, results []model.ActionResult, replyText string) error {
	now := u.now().UTC()

	appended, err := u.conversations.AppendBotMessage(ctx, model.StoredMessage{
		ID:             "bot:" + env.ID,
		ConversationID: env.ConversationID,
		Sender:         model.SenderBot,
		Content:        replyText,
		Intent:         cls.Intent,
		Sentiment:      cls.Sentiment,
		Confidence:     cls.Confidence,
		ActionCount:    len(results),
		CreatedAt:      now,
	})
	if err != nil {
		return fmt.Errorf("append bot message: %w", err)
	}

	if appended {
		if err := u.conversations.UpdateCounters(ctx, env.ConversationID, cls.Confidence, now); err != nil {
			return fmt.Errorf("update counters: %w", err)
		}
	} else {
		logx.Info().
			Str("conversation_id", env.ConversationID).
			Str("message_id", env.ID).
			Msg("reply already persisted, counters untouched")
	}

	// Saving the session is a plain overwrite, safe to repeat on retry.
	session := model.SessionData{
		LastIntent:      cls.Intent,
		LastConfidence:  cls.Confidence,
		LastActionCount: len(results),
		LastUpdate:      now,
	}
	if err := u.sessions.Save(ctx, env.ConversationID, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
