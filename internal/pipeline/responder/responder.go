package responder

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/bma-social/support-core/internal/pipeline/guard"
	"github.com/bma-social/support-core/internal/pipeline/model"
	logx "github.com/bma-social/support-core/pkg/logger"
)

// ChatModel is the narrow slice of eino's chat model the responder
// needs. Satisfied by the Gemini model from NewReplyModel.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// ReplySource tags how a reply was produced.
type ReplySource string

const (
	SourceGenerated ReplySource = "generated"
	SourceTemplate  ReplySource = "template"
)

// Reply is the customer-facing text plus how it was obtained, so
// callers can tell a degraded reply from a generated one without
// inspecting errors.
type Reply struct {
	Text   string
	Source ReplySource
}

// Responder produces the customer-facing reply. The generative path is
// guarded by its own circuit breaker; template fallback is always
// available and never empty.
type Responder struct {
	chat    ChatModel
	breaker *guard.CircuitBreaker
	timeout time.Duration
}

func New(chat ChatModel, breaker *guard.CircuitBreaker, timeout time.Duration) *Responder {
	return &Responder{chat: chat, breaker: breaker, timeout: timeout}
}

// Generate returns the reply for one processed message. An open breaker
// skips straight to templates without attempting the remote call.
func (r *Responder) Generate(ctx context.Context, mctx model.ConversationContext, cls model.ClassificationResult, results []model.ActionResult) Reply {
	if r.chat == nil || r.breaker.IsOpen() {
		return Reply{Text: templateReply(cls.Intent, results), Source: SourceTemplate}
	}

	if err := r.breaker.Allow(); err != nil {
		return Reply{Text: templateReply(cls.Intent, results), Source: SourceTemplate}
	}

	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.chat.Generate(genCtx, buildPrompt(mctx, cls, results))
	if err != nil || out == nil || strings.TrimSpace(out.Content) == "" {
		r.breaker.RecordFailure()
		logx.Warn().
			Err(err).
			Str("conversation_id", mctx.ConversationID).
			Msg("reply generation failed, falling back to template")
		return Reply{Text: templateReply(cls.Intent, results), Source: SourceTemplate}
	}

	r.breaker.RecordSuccess()
	return Reply{Text: strings.TrimSpace(out.Content), Source: SourceGenerated}
}

// selectTone maps sentiment and action outcome onto the reply tone.
func selectTone(sentiment model.Sentiment, results []model.ActionResult) string {
	_, failures := model.CountOutcomes(results)
	switch {
	case sentiment == model.SentimentUrgent:
		return "urgent_helpful"
	case sentiment == model.SentimentNegative:
		return "empathetic"
	case failures > 0:
		return "apologetic"
	default:
		return "friendly"
	}
}

const systemPrompt = "You are a support assistant for a venue background-music service. " +
	"Be concise and helpful, confirm any action taken, and use natural conversational language. " +
	"Never invent actions that did not happen."

func buildPrompt(mctx model.ConversationContext, cls model.ClassificationResult, results []model.ActionResult) []*schema.Message {
	success, failure := model.CountOutcomes(results)
	tone := selectTone(cls.Sentiment, results)

	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s reply to the customer.\n", tone)
	fmt.Fprintf(&b, "Intent: %s\n", cls.Intent)
	for _, e := range cls.Entities {
		fmt.Fprintf(&b, "Entity %s: %s\n", e.Type, e.Value)
	}
	fmt.Fprintf(&b, "Actions: %d succeeded, %d failed\n", success, failure)
	for i, res := range results {
		if i >= 3 { // keep the prompt small
			break
		}
		if res.Success {
			fmt.Fprintf(&b, "- %s on zone %s: %s\n", res.Type, res.ZoneID, res.Detail)
		} else {
			fmt.Fprintf(&b, "- %s on zone %s failed: %s\n", res.Type, res.ZoneID, res.Error)
		}
	}
	if cls.RequiresClarification {
		b.WriteString("The request was ambiguous; ask one short clarifying question.\n")
	}
	if mctx.Language != "" {
		fmt.Fprintf(&b, "Reply in language: %s\n", mctx.Language)
	}

	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(b.String()),
	}
}
