package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/bma-social/support-core/internal/pipeline/conversations"
	"github.com/bma-social/support-core/internal/pipeline/model"
	"github.com/bma-social/support-core/internal/pipeline/responder"
	logx "github.com/bma-social/support-core/pkg/logger"
)

// Collaborator interfaces, satisfied by the pipeline packages. Declared
// here so the processor can be tested with stubs.
type (
	ContextLoader interface {
		Load(ctx context.Context, env model.MessageEnvelope) (model.ConversationContext, error)
	}
	Classifier interface {
		Classify(text string, session model.SessionData) model.ClassificationResult
	}
	ActionExecutor interface {
		Execute(ctx context.Context, mctx model.ConversationContext, cls model.ClassificationResult) []model.ActionResult
	}
	ReplyGenerator interface {
		Generate(ctx context.Context, mctx model.ConversationContext, cls model.ClassificationResult, results []model.ActionResult) responder.Reply
	}
	StateUpdater interface {
		Apply(ctx context.Context, env model.MessageEnvelope, cls model.ClassificationResult, results []model.ActionResult, replyText string) error
	}
	EscalationHandler interface {
		Escalate(ctx context.Context, mctx model.ConversationContext, cause string) error
		EscalateSLABreach(ctx context.Context, mctx model.ConversationContext) error
	}
)

// Processor runs the full pipeline for one envelope: load context,
// check the SLA deadline, classify, either escalate or act, reply, then
// persist state. Returned errors are retryable; a nil return means the
// message is done.
type Processor struct {
	loader     ContextLoader
	classifier Classifier
	executor   ActionExecutor
	responder  ReplyGenerator
	updater    StateUpdater
	escalator  EscalationHandler
	messenger  model.Messenger
	bus        model.AlertBus
	now        func() time.Time
}

func NewProcessor(
	loader ContextLoader,
	classifier Classifier,
	executor ActionExecutor,
	replies ReplyGenerator,
	updater StateUpdater,
	escalator EscalationHandler,
	messenger model.Messenger,
	bus model.AlertBus,
) *Processor {
	return &Processor{
		loader:     loader,
		classifier: classifier,
		executor:   executor,
		responder:  replies,
		updater:    updater,
		escalator:  escalator,
		messenger:  messenger,
		bus:        bus,
		now:        time.Now,
	}
}

func (p *Processor) Process(ctx context.Context, env model.MessageEnvelope) error {
	start := p.now()

	mctx, err := p.loader.Load(ctx, env)
	if err != nil {
		return fmt.Errorf("load context: %w", err)
	}

	// The deadline check runs before anything else so a breached
	// conversation reaches a human even when the message itself would
	// have been handled fine.
	if mctx.DeadlineBreached(start) {
		if err := p.escalator.EscalateSLABreach(ctx, mctx); err != nil {
			return fmt.Errorf("escalate sla breach: %w", err)
		}
		cls := model.ClassificationResult{Intent: model.IntentUnknown, Sentiment: model.SentimentNeutral}
		if err := p.updater.Apply(ctx, env, cls, nil, conversations.AckText()); err != nil {
			return fmt.Errorf("update state: %w", err)
		}
		p.publishMetrics(ctx, env, mctx, cls, nil, responder.SourceTemplate, true, start)
		return nil
	}

	cls := p.classifier.Classify(env.Content, mctx.Session)

	if cls.EscalationRecommended || mctx.IsVIP {
		cause := conversations.CauseClassifier
		if !cls.EscalationRecommended {
			cause = conversations.CauseVIP
		}
		if err := p.escalator.Escalate(ctx, mctx, cause); err != nil {
			return fmt.Errorf("escalate: %w", err)
		}
		if err := p.updater.Apply(ctx, env, cls, nil, conversations.AckText()); err != nil {
			return fmt.Errorf("update state: %w", err)
		}
		p.publishMetrics(ctx, env, mctx, cls, nil, responder.SourceTemplate, true, start)
		return nil
	}

	results := p.executor.Execute(ctx, mctx, cls)
	reply := p.responder.Generate(ctx, mctx, cls, results)

	// Delivery failures never fail the message; a retry event carries
	// the reply for the delivery worker instead.
	if err := p.messenger.Send(ctx, mctx.Channel, mctx.CustomerID, reply.Text); err != nil {
		logx.Warn().
			Err(err).
			Str("conversation_id", env.ConversationID).
			Msg("reply delivery failed, publishing retry event")
		retry := map[string]any{
			"message_id":      env.ID,
			"conversation_id": env.ConversationID,
			"channel":         mctx.Channel,
			"recipient":       mctx.CustomerID,
			"text":            reply.Text,
			"timestamp":       p.now().UTC().Format(time.RFC3339),
		}
		if pubErr := p.bus.Publish(ctx, model.SendRetryChannel, retry); pubErr != nil {
			logx.Error().Err(pubErr).Str("message_id", env.ID).Msg("failed to publish send retry event")
		}
	}

	if err := p.updater.Apply(ctx, env, cls, results, reply.Text); err != nil {
		return fmt.Errorf("update state: %w", err)
	}

	p.publishMetrics(ctx, env, mctx, cls, results, reply.Source, false, start)
	return nil
}

func (p *Processor) publishMetrics(
	ctx context.Context,
	env model.MessageEnvelope,
	mctx model.ConversationContext,
	cls model.ClassificationResult,
	results []model.ActionResult,
	source responder.ReplySource,
	escalated bool,
	start time.Time,
) {
	success, failure := model.CountOutcomes(results)
	payload := map[string]any{
		"message_id":        env.ID,
		"conversation_id":   env.ConversationID,
		"venue_id":          mctx.VenueID,
		"intent":            cls.Intent,
		"confidence":        cls.Confidence,
		"sentiment":         cls.Sentiment,
		"actions_succeeded": success,
		"actions_failed":    failure,
		"reply_source":      source,
		"escalated":         escalated,
		"duration_ms":       p.now().Sub(start).Milliseconds(),
		"timestamp":         p.now().UTC().Format(time.RFC3339),
	}
	if err := p.bus.Publish(ctx, model.MetricsProcessing, payload); err != nil {
		logx.Warn().Err(err).Str("message_id", env.ID).Msg("failed to publish processing metrics")
	}
}
