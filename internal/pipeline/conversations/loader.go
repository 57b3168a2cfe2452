package conversations

import (
	"context"
	"fmt"

	"github.com/bma-social/support-core/internal/pipeline/model"
)

// Loader assembles the per-message ConversationContext from the
// conversation row, recent history and the cached session.
type Loader struct {
	conversations model.ConversationRepository
	sessions      model.SessionRepository
	recentLimit   int
}

func NewLoader(conversations model.ConversationRepository, sessions model.SessionRepository, recentLimit int) *Loader {
	return &Loader{
		conversations: conversations,
		sessions:      sessions,
		recentLimit:   recentLimit,
	}
}

// Load builds the context for one inbound envelope. An unknown
// conversation is an error so the message retries and eventually dead
// letters instead of being processed against fabricated state.
func (l *Loader) Load(ctx context.Context, env model.MessageEnvelope) (model.ConversationContext, error) {
	meta, err := l.conversations.GetMeta(ctx, env.ConversationID)
	if err != nil {
		return model.ConversationContext{}, fmt.Errorf("load conversation %s: %w", env.ConversationID, err)
	}

	recent, err := l.conversations.RecentMessages(ctx, env.ConversationID, l.recentLimit)
	if err != nil {
		return model.ConversationContext{}, fmt.Errorf("load history for %s: %w", env.ConversationID, err)
	}

	session, err := l.sessions.Load(ctx, env.ConversationID)
	if err != nil {
		return model.ConversationContext{}, fmt.Errorf("load session for %s: %w", env.ConversationID, err)
	}

	mctx := model.ConversationContext{
		ConversationID: env.ConversationID,
		VenueID:        meta.VenueID,
		ZoneIDs:        meta.ZoneIDs,
		Channel:        meta.Channel,
		CustomerID:     meta.CustomerID,
		Language:       meta.Language,
		Session:        session,
		Recent:         recent,
		SLADeadline:    meta.SLADeadline,
		Priority:       meta.Priority,
		IsVIP:          meta.IsVIP,
	}
	if mctx.Channel == "" {
		mctx.Channel = env.Channel
	}
	if mctx.VenueID == "" {
		mctx.VenueID = env.VenueID
	}
	return mctx, nil
}
