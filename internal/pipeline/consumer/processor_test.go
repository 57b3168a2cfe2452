package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bma-social/support-core/internal/pipeline/conversations"
	"github.com/bma-social/support-core/internal/pipeline/model"
	"github.com/bma-social/support-core/internal/pipeline/responder"
)

type stubLoader struct {
	mctx model.ConversationContext
	err  error
}

func (s *stubLoader) Load(_ context.Context, _ model.MessageEnvelope) (model.ConversationContext, error) {
	return s.mctx, s.err
}

type stubClassifier struct {
	cls   model.ClassificationResult
	calls int
}

func (s *stubClassifier) Classify(_ string, _ model.SessionData) model.ClassificationResult {
	s.calls++
	return s.cls
}

type stubExecutor struct {
	results []model.ActionResult
	calls   int
}

func (s *stubExecutor) Execute(_ context.Context, _ model.ConversationContext, _ model.ClassificationResult) []model.ActionResult {
	s.calls++
	return s.results
}

type stubResponder struct {
	reply responder.Reply
}

func (s *stubResponder) Generate(_ context.Context, _ model.ConversationContext, _ model.ClassificationResult, _ []model.ActionResult) responder.Reply {
	return s.reply
}

type stubUpdater struct {
	err   error
	calls int
	text  string
}

func (s *stubUpdater) Apply(_ context.Context, _ model.MessageEnvelope, _ model.ClassificationResult, _ []model.ActionResult, replyText string) error {
	s.calls++
	s.text = replyText
	return s.err
}

type stubEscalator struct {
	cause     string
	slaCalls  int
	escCalls  int
	escateErr error
}

func (s *stubEscalator) Escalate(_ context.Context, _ model.ConversationContext, cause string) error {
	s.escCalls++
	s.cause = cause
	return s.escateErr
}

func (s *stubEscalator) EscalateSLABreach(_ context.Context, _ model.ConversationContext) error {
	s.slaCalls++
	return nil
}

type stubMessenger struct {
	err   error
	calls int
}

func (s *stubMessenger) Send(_ context.Context, _ model.Channel, _ string, _ string) error {
	s.calls++
	return s.err
}

type stubBus struct {
	published map[string][]any
}

func newStubBus() *stubBus { return &stubBus{published: map[string][]any{}} }

func (s *stubBus) Publish(_ context.Context, channel string, payload any) error {
	s.published[channel] = append(s.published[channel], payload)
	return nil
}

type procDeps struct {
	loader     *stubLoader
	classifier *stubClassifier
	executor   *stubExecutor
	responder  *stubResponder
	updater    *stubUpdater
	escalator  *stubEscalator
	messenger  *stubMessenger
	bus        *stubBus
}

func newProcDeps() *procDeps {
	return &procDeps{
		loader:     &stubLoader{mctx: model.ConversationContext{ConversationID: "conv-1", Channel: model.ChannelWhatsApp, CustomerID: "cust-1"}},
		classifier: &stubClassifier{cls: model.ClassificationResult{Intent: model.IntentVolumeAdjust, Confidence: 0.8}},
		executor:   &stubExecutor{results: []model.ActionResult{{Success: true}}},
		responder:  &stubResponder{reply: responder.Reply{Text: "done", Source: responder.SourceGenerated}},
		updater:    &stubUpdater{},
		escalator:  &stubEscalator{},
		messenger:  &stubMessenger{},
		bus:        newStubBus(),
	}
}

func (d *procDeps) build() *Processor {
	return NewProcessor(d.loader, d.classifier, d.executor, d.responder, d.updater, d.escalator, d.messenger, d.bus)
}

func procEnvelope() model.MessageEnvelope {
	return model.MessageEnvelope{
		ID:             "msg-1",
		ConversationID: "conv-1",
		VenueID:        "venue-1",
		Channel:        model.ChannelWhatsApp,
		Content:        "turn it up",
	}
}

func TestProcess_HappyPath(t *testing.T) {
	d := newProcDeps()
	p := d.build()

	require.NoError(t, p.Process(context.Background(), procEnvelope()))

	require.Equal(t, 1, d.executor.calls)
	require.Equal(t, 1, d.messenger.calls)
	require.Equal(t, 1, d.updater.calls)
	require.Equal(t, "done", d.updater.text)
	require.Zero(t, d.escalator.escCalls)
	require.Len(t, d.bus.published[model.MetricsProcessing], 1)
	require.Empty(t, d.bus.published[model.SendRetryChannel])
}

func TestProcess_LoadFailureIsRetryable(t *testing.T) {
	d := newProcDeps()
	d.loader.err = errors.New("redis down")
	p := d.build()

	require.Error(t, p.Process(context.Background(), procEnvelope()))
	require.Zero(t, d.classifier.calls)
}

func TestProcess_SLABreachShortCircuits(t *testing.T) {
	d := newProcDeps()
	d.loader.mctx.SLADeadline = time.Now().Add(-time.Minute)
	p := d.build()

	require.NoError(t, p.Process(context.Background(), procEnvelope()))

	require.Equal(t, 1, d.escalator.slaCalls)
	require.Zero(t, d.classifier.calls, "breached conversations skip classification")
	require.Zero(t, d.executor.calls)
	require.Equal(t, 1, d.updater.calls)
	require.Equal(t, conversations.AckText(), d.updater.text)
}

func TestProcess_ClassifierEscalationShortCircuits(t *testing.T) {
	d := newProcDeps()
	d.classifier.cls.EscalationRecommended = true
	p := d.build()

	require.NoError(t, p.Process(context.Background(), procEnvelope()))

	require.Equal(t, 1, d.escalator.escCalls)
	require.Equal(t, conversations.CauseClassifier, d.escalator.cause)
	require.Zero(t, d.executor.calls, "escalated messages never touch zone control")
	require.Equal(t, conversations.AckText(), d.updater.text)
}

func TestProcess_VIPEscalates(t *testing.T) {
	d := newProcDeps()
	d.loader.mctx.IsVIP = true
	p := d.build()

	require.NoError(t, p.Process(context.Background(), procEnvelope()))

	require.Equal(t, 1, d.escalator.escCalls)
	require.Equal(t, conversations.CauseVIP, d.escalator.cause)
}

func TestProcess_EscalationFailureIsRetryable(t *testing.T) {
	d := newProcDeps()
	d.classifier.cls.EscalationRecommended = true
	d.escalator.escateErr = errors.New("bus down")
	p := d.build()

	require.Error(t, p.Process(context.Background(), procEnvelope()))
	require.Zero(t, d.updater.calls)
}

func TestProcess_SendFailurePublishesRetryEvent(t *testing.T) {
	d := newProcDeps()
	d.messenger.err = errors.New("webhook timeout")
	p := d.build()

	require.NoError(t, p.Process(context.Background(), procEnvelope()), "delivery failure must not fail the message")

	require.Len(t, d.bus.published[model.SendRetryChannel], 1)
	require.Equal(t, 1, d.updater.calls, "state still updates after a failed send")
}

func TestProcess_UpdateFailureIsRetryable(t *testing.T) {
	d := newProcDeps()
	d.updater.err = errors.New("redis down")
	p := d.build()

	require.Error(t, p.Process(context.Background(), procEnvelope()))
}
