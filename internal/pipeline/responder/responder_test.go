package responder

import (
	"context"
	"errors"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/bma-social/support-core/internal/pipeline/guard"
	"github.com/bma-social/support-core/internal/pipeline/model"
)

type stubChat struct {
	out   *schema.Message
	err   error
	calls int
}

func (s *stubChat) Generate(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	s.calls++
	return s.out, s.err
}

func newTestResponder(chat ChatModel) (*Responder, *guard.CircuitBreaker) {
	breaker := guard.NewCircuitBreaker("reply", 5, time.Minute)
	return New(chat, breaker, time.Second), breaker
}

func successResults() []model.ActionResult {
	return []model.ActionResult{{Type: model.ActionVolumeChange, ZoneID: "z1", Success: true}}
}

func TestGenerate_UsesModelOutput(t *testing.T) {
	chat := &stubChat{out: schema.AssistantMessage("  Volume turned up in the lobby.  ", nil)}
	r, _ := newTestResponder(chat)

	reply := r.Generate(context.Background(), model.ConversationContext{}, model.ClassificationResult{Intent: model.IntentVolumeAdjust}, successResults())

	require.Equal(t, SourceGenerated, reply.Source)
	require.Equal(t, "Volume turned up in the lobby.", reply.Text)
	require.Equal(t, 1, chat.calls)
}

func TestGenerate_NilModelFallsBackToTemplate(t *testing.T) {
	r, _ := newTestResponder(nil)

	reply := r.Generate(context.Background(), model.ConversationContext{}, model.ClassificationResult{Intent: model.IntentVolumeAdjust}, successResults())

	require.Equal(t, SourceTemplate, reply.Source)
	require.Equal(t, "Volume has been adjusted successfully.", reply.Text)
}

func TestGenerate_OpenBreakerSkipsModel(t *testing.T) {
	chat := &stubChat{out: schema.AssistantMessage("never", nil)}
	r, breaker := newTestResponder(chat)
	for i := 0; i < 5; i++ {
		breaker.RecordFailure()
	}

	reply := r.Generate(context.Background(), model.ConversationContext{}, model.ClassificationResult{Intent: model.IntentMusicStop}, nil)

	require.Equal(t, SourceTemplate, reply.Source)
	require.NotEmpty(t, reply.Text)
	require.Zero(t, chat.calls)
}

func TestGenerate_ModelErrorFallsBackAndCountsFailure(t *testing.T) {
	chat := &stubChat{err: errors.New("model unavailable")}
	r, breaker := newTestResponder(chat)

	reply := r.Generate(context.Background(), model.ConversationContext{}, model.ClassificationResult{Intent: model.IntentVolumeAdjust}, successResults())

	require.Equal(t, SourceTemplate, reply.Source)
	require.NotEmpty(t, reply.Text)
	require.Equal(t, 1, breaker.State().FailureCount)
}

func TestGenerate_EmptyModelOutputFallsBack(t *testing.T) {
	chat := &stubChat{out: schema.AssistantMessage("   ", nil)}
	r, _ := newTestResponder(chat)

	reply := r.Generate(context.Background(), model.ConversationContext{}, model.ClassificationResult{Intent: model.IntentVolumeAdjust}, successResults())

	require.Equal(t, SourceTemplate, reply.Source)
	require.NotEmpty(t, reply.Text)
}

func TestTemplateReply_NeverEmpty(t *testing.T) {
	intents := []model.Intent{
		model.IntentVolumeAdjust, model.IntentPlaylistChange, model.IntentMusicStop,
		model.IntentMusicStart, model.IntentMusicNotPlaying, model.IntentCurrentPlaying,
		model.IntentGreeting, model.IntentThanks, model.IntentHelpRequest,
		model.IntentComplaint, model.IntentUnknown, model.Intent("something_else"),
	}
	outcomes := [][]model.ActionResult{
		nil,
		{{Success: true}},
		{{Success: false}},
		{{Success: true}, {Success: false}},
	}
	for _, intent := range intents {
		for _, results := range outcomes {
			require.NotEmpty(t, templateReply(intent, results), "intent %s", intent)
		}
	}
}

func TestTemplateReply_PartialOutcome(t *testing.T) {
	results := []model.ActionResult{
		{Success: true}, {Success: true}, {Success: false},
	}
	require.Equal(t, "Volume adjusted for 2 zones. 1 zones had issues.", templateReply(model.IntentVolumeAdjust, results))
}

func TestSelectTone(t *testing.T) {
	failed := []model.ActionResult{{Success: false}}

	require.Equal(t, "urgent_helpful", selectTone(model.SentimentUrgent, nil))
	require.Equal(t, "urgent_helpful", selectTone(model.SentimentUrgent, failed))
	require.Equal(t, "empathetic", selectTone(model.SentimentNegative, nil))
	require.Equal(t, "apologetic", selectTone(model.SentimentNeutral, failed))
	require.Equal(t, "friendly", selectTone(model.SentimentPositive, successResults()))
	require.Equal(t, "friendly", selectTone(model.SentimentNeutral, nil))
}
