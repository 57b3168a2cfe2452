package conversations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bma-social/support-core/internal/pipeline/model"
)

type memConvRepo struct {
	meta     *model.ConversationMeta
	metaErr  error
	seen     map[string]bool
	messages []model.StoredMessage

	counterCalls int
	lastConf     float64
	escalated    bool
	cause        string
}

func newMemConvRepo(meta *model.ConversationMeta) *memConvRepo {
	return &memConvRepo{meta: meta, seen: map[string]bool{}}
}

func (m *memConvRepo) AppendBotMessage(_ context.Context, msg model.StoredMessage) (bool, error) {
	if m.seen[msg.ID] {
		return false, nil
	}
	m.seen[msg.ID] = true
	m.messages = append(m.messages, msg)
	return true, nil
}

func (m *memConvRepo) RecentMessages(_ context.Context, _ string, limit int) ([]model.StoredMessage, error) {
	if len(m.messages) > limit {
		return m.messages[len(m.messages)-limit:], nil
	}
	return m.messages, nil
}

func (m *memConvRepo) GetMeta(_ context.Context, _ string) (*model.ConversationMeta, error) {
	if m.metaErr != nil {
		return nil, m.metaErr
	}
	return m.meta, nil
}

func (m *memConvRepo) UpdateCounters(_ context.Context, _ string, confidence float64, _ time.Time) error {
	m.counterCalls++
	m.lastConf = confidence
	return nil
}

func (m *memConvRepo) MarkEscalated(_ context.Context, _ string, cause string, _ time.Time) error {
	m.escalated = true
	m.cause = cause
	return nil
}

type memSessions struct {
	data  map[string]model.SessionData
	saves int
}

func newMemSessions() *memSessions {
	return &memSessions{data: map[string]model.SessionData{}}
}

func (m *memSessions) Load(_ context.Context, conversationID string) (model.SessionData, error) {
	return m.data[conversationID], nil
}

func (m *memSessions) Save(_ context.Context, conversationID string, data model.SessionData) error {
	m.saves++
	m.data[conversationID] = data
	return nil
}

type memBus struct {
	published map[string][]any
}

func newMemBus() *memBus { return &memBus{published: map[string][]any{}} }

func (m *memBus) Publish(_ context.Context, channel string, payload any) error {
	m.published[channel] = append(m.published[channel], payload)
	return nil
}

type memMessenger struct {
	sent []string
	err  error
}

func (m *memMessenger) Send(_ context.Context, _ model.Channel, _ string, text string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, text)
	return nil
}

func testMeta() *model.ConversationMeta {
	return &model.ConversationMeta{
		ConversationID: "conv-1",
		VenueID:        "venue-1",
		Channel:        model.ChannelWhatsApp,
		CustomerID:     "cust-1",
		ZoneIDs:        []string{"z1", "z2"},
		Status:         model.StatusBotHandling,
		Priority:       model.PriorityNormal,
	}
}

func testEnvelope() model.MessageEnvelope {
	return model.MessageEnvelope{
		ID:             "msg-1",
		ConversationID: "conv-1",
		VenueID:        "venue-1",
		Channel:        model.ChannelWhatsApp,
		Content:        "turn it up",
		ReceivedAt:     time.Now(),
	}
}

func TestLoader_BuildsContext(t *testing.T) {
	repo := newMemConvRepo(testMeta())
	sessions := newMemSessions()
	sessions.data["conv-1"] = model.SessionData{LastIntent: model.IntentVolumeAdjust}

	loader := NewLoader(repo, sessions, 10)
	mctx, err := loader.Load(context.Background(), testEnvelope())

	require.NoError(t, err)
	require.Equal(t, "conv-1", mctx.ConversationID)
	require.Equal(t, []string{"z1", "z2"}, mctx.ZoneIDs)
	require.Equal(t, model.ChannelWhatsApp, mctx.Channel)
	require.Equal(t, model.IntentVolumeAdjust, mctx.Session.LastIntent)
}

func TestLoader_UnknownConversationFails(t *testing.T) {
	repo := newMemConvRepo(nil)
	repo.metaErr = errors.New("not found")

	loader := NewLoader(repo, newMemSessions(), 10)
	_, err := loader.Load(context.Background(), testEnvelope())

	require.Error(t, err)
}

func TestUpdater_AppliesStateOnce(t *testing.T) {
	repo := newMemConvRepo(testMeta())
	sessions := newMemSessions()
	updater := NewUpdater(repo, sessions)

	env := testEnvelope()
	cls := model.ClassificationResult{Intent: model.IntentVolumeAdjust, Confidence: 0.8}
	results := []model.ActionResult{{Success: true}}

	require.NoError(t, updater.Apply(context.Background(), env, cls, results, "done"))

	require.Len(t, repo.messages, 1)
	require.Equal(t, model.SenderBot, repo.messages[0].Sender)
	require.Equal(t, "done", repo.messages[0].Content)
	require.Equal(t, 1, repo.counterCalls)
	require.Equal(t, 0.8, repo.lastConf)

	session := sessions.data["conv-1"]
	require.Equal(t, model.IntentVolumeAdjust, session.LastIntent)
	require.Equal(t, 0.8, session.LastConfidence)
	require.Equal(t, 1, session.LastActionCount)
}

func TestUpdater_RetriedEnvelopeIsIdempotent(t *testing.T) {
	repo := newMemConvRepo(testMeta())
	sessions := newMemSessions()
	updater := NewUpdater(repo, sessions)

	env := testEnvelope()
	cls := model.ClassificationResult{Intent: model.IntentVolumeAdjust, Confidence: 0.8}

	require.NoError(t, updater.Apply(context.Background(), env, cls, nil, "done"))
	require.NoError(t, updater.Apply(context.Background(), env, cls, nil, "done"))

	require.Len(t, repo.messages, 1, "retry must not duplicate the bot turn")
	require.Equal(t, 1, repo.counterCalls, "retry must not double count")
	require.Equal(t, 2, sessions.saves, "session overwrite is safe to repeat")
}

func TestEscalator_HandsOffConversation(t *testing.T) {
	repo := newMemConvRepo(testMeta())
	bus := newMemBus()
	msgr := &memMessenger{}
	esc := NewEscalator(repo, bus, msgr)

	mctx := model.ConversationContext{
		ConversationID: "conv-1",
		VenueID:        "venue-1",
		CustomerID:     "cust-1",
		Channel:        model.ChannelWhatsApp,
	}
	require.NoError(t, esc.Escalate(context.Background(), mctx, CauseClassifier))

	require.True(t, repo.escalated)
	require.Equal(t, CauseClassifier, repo.cause)
	require.Len(t, bus.published[model.EscalationsNew], 1)
	require.Equal(t, []string{AckText()}, msgr.sent)
}

func TestEscalator_AckFailureDoesNotFailHandoff(t *testing.T) {
	repo := newMemConvRepo(testMeta())
	bus := newMemBus()
	msgr := &memMessenger{err: errors.New("webhook down")}
	esc := NewEscalator(repo, bus, msgr)

	err := esc.Escalate(context.Background(), model.ConversationContext{ConversationID: "conv-1"}, CauseVIP)

	require.NoError(t, err)
	require.True(t, repo.escalated)
}

func TestEscalator_SLABreachPublishesAlert(t *testing.T) {
	repo := newMemConvRepo(testMeta())
	bus := newMemBus()
	esc := NewEscalator(repo, bus, &memMessenger{})

	mctx := model.ConversationContext{
		ConversationID: "conv-1",
		SLADeadline:    time.Now().Add(-time.Hour),
	}
	require.NoError(t, esc.EscalateSLABreach(context.Background(), mctx))

	require.Len(t, bus.published[model.AlertSLABreach], 1)
	require.Len(t, bus.published[model.EscalationsNew], 1)
	require.Equal(t, CauseSLABreach, repo.cause)
}

func TestMetaFromFields_Defaults(t *testing.T) {
	meta := metaFromFields("conv-9", map[string]string{
		"venue_id": "venue-9",
		"is_vip":   "1",
		"zone_ids": `["z1"]`,
	})

	require.Equal(t, "conv-9", meta.ConversationID)
	require.Equal(t, "venue-9", meta.VenueID)
	require.True(t, meta.IsVIP)
	require.Equal(t, []string{"z1"}, meta.ZoneIDs)
	require.Equal(t, model.StatusBotHandling, meta.Status)
	require.Equal(t, model.PriorityNormal, meta.Priority)
	require.True(t, meta.SLADeadline.IsZero())
}
