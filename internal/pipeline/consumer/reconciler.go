package consumer

import (
	"context"
	"time"

	"github.com/bma-social/support-core/internal/pipeline/conversations"
	"github.com/bma-social/support-core/internal/pipeline/model"
	logx "github.com/bma-social/support-core/pkg/logger"
)

// ReconcilerConfig bounds one dead-letter sweep.
type ReconcilerConfig struct {
	Interval    time.Duration
	EscalateAge time.Duration
	ScanLimit   int
}

// Reconciler sweeps the dead letter queue on a timer. Fresh entries are
// escalated to the team for manual intervention; entries older than the
// escalation window are archived.
type Reconciler struct {
	dlq model.DeadLetterStore
	bus model.AlertBus
	cfg ReconcilerConfig
	now func() time.Time
}

func NewReconciler(dlq model.DeadLetterStore, bus model.AlertBus, cfg ReconcilerConfig) *Reconciler {
	return &Reconciler{dlq: dlq, bus: bus, cfg: cfg, now: time.Now}
}

// Run sweeps until ctx is canceled.
func (r *Reconciler) Run(ctx context.Context) error {
	logx.Info().Dur("interval", r.cfg.Interval).Msg("dead letter reconciler started")
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logx.Info().Msg("dead letter reconciler stopping")
			return nil
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep processes one batch of dead letter entries.
func (r *Reconciler) Sweep(ctx context.Context) {
	entries, err := r.dlq.Scan(ctx, r.cfg.ScanLimit)
	if err != nil {
		logx.Error().Err(err).Msg("failed to scan dead letter queue")
		return
	}

	now := r.now().UTC()
	for _, entry := range entries {
		age := now.Sub(entry.FailedAt)
		if age < r.cfg.EscalateAge {
			r.escalate(ctx, entry)
		} else {
			if err := r.dlq.Archive(ctx, entry); err != nil {
				logx.Error().Err(err).Str("message_id", entry.OriginalEnvelope.ID).Msg("failed to archive dead letter entry")
				continue
			}
			logx.Info().
				Str("message_id", entry.OriginalEnvelope.ID).
				Dur("age", age).
				Msg("stale dead letter entry archived")
		}
	}
}

func (r *Reconciler) escalate(ctx context.Context, entry model.DLQEntry) {
	env := entry.OriginalEnvelope
	payload := map[string]any{
		"message_id":      env.ID,
		"conversation_id": env.ConversationID,
		"venue_id":        env.VenueID,
		"error":           entry.Error,
		"retry_count":     entry.RetryCount,
		"failed_at":       entry.FailedAt.Format(time.RFC3339),
		"reason":          conversations.CauseManualReview,
	}
	if err := r.bus.Publish(ctx, model.EscalationsDLQ, payload); err != nil {
		logx.Error().Err(err).Str("message_id", env.ID).Msg("failed to publish dead letter escalation")
		return
	}
	if err := r.dlq.Remove(ctx, entry); err != nil {
		logx.Error().Err(err).Str("message_id", env.ID).Msg("failed to remove escalated dead letter entry")
		return
	}
	logx.Info().Str("message_id", env.ID).Msg("dead letter entry escalated to team")
}
