package conversations

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/bma-social/support-core/internal/core/error"
	"github.com/bma-social/support-core/internal/pipeline/model"
	logx "github.com/bma-social/support-core/pkg/logger"
)

// RedisConversationRepository persists conversation turns in a Redis
// list and the conversation row in a hash. Appended bot messages carry
// the originating envelope ID in a side set so retried messages never
// duplicate their reply.
type RedisConversationRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisConversationRepository) messagesKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:messages", conversationID)
}

func (r *RedisConversationRepository) metaKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:meta", conversationID)
}

func (r *RedisConversationRepository) botSeenKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:botmsgs", conversationID)
}

func (r *RedisConversationRepository) AppendBotMessage(ctx context.Context, msg model.StoredMessage) (bool, error) {
	seenKey := r.botSeenKey(msg.ConversationID)
	added, err := r.rdb.SAdd(ctx, seenKey, msg.ID).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", seenKey).Msg("failed to record bot message id")
		return false, errx.WrapRedis(err)
	}
	if added == 0 {
		// Already appended by an earlier attempt of the same message.
		logx.Debug().
			Str("conversation_id", msg.ConversationID).
			Str("message_id", msg.ID).
			Msg("bot message already persisted, skipping append")
		return false, nil
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return false, fmt.Errorf("marshal message: %w", err)
	}

	key := r.messagesKey(msg.ConversationID)
	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push message to redis")
		return false, errx.WrapRedis(err)
	}
	if r.ttl > 0 {
		if err := r.rdb.Expire(ctx, key, r.ttl).Err(); err != nil {
			logx.Warn().Err(err).Str("key", key).Msg("failed to set TTL on conversation messages")
		}
		if err := r.rdb.Expire(ctx, seenKey, r.ttl).Err(); err != nil {
			logx.Warn().Err(err).Str("key", seenKey).Msg("failed to set TTL on bot message ids")
		}
	}
	return true, nil
}

func (r *RedisConversationRepository) RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.StoredMessage, error) {
	key := r.messagesKey(conversationID)
	rows, err := r.rdb.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation history from redis")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]model.StoredMessage, 0, len(rows))
	for i, s := range rows {
		var m model.StoredMessage
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (r *RedisConversationRepository) GetMeta(ctx context.Context, conversationID string) (*model.ConversationMeta, error) {
	key := r.metaKey(conversationID)
	fields, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation meta from redis")
		return nil, errx.WrapRedis(err)
	}
	if len(fields) == 0 {
		return nil, errx.WrapRedis(redis.Nil)
	}
	return metaFromFields(conversationID, fields), nil
}

func (r *RedisConversationRepository) UpdateCounters(ctx context.Context, conversationID string, confidence float64, now time.Time) error {
	key := r.metaKey(conversationID)
	pipe := r.rdb.Pipeline()
	pipe.HIncrBy(ctx, key, "message_count", 1)
	pipe.HIncrBy(ctx, key, "bot_message_count", 1)
	pipe.HSet(ctx, key,
		"bot_confidence", strconv.FormatFloat(confidence, 'f', -1, 64),
		"last_activity_at", now.UTC().Format(time.RFC3339),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to update conversation counters")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) MarkEscalated(ctx context.Context, conversationID, cause string, now time.Time) error {
	key := r.metaKey(conversationID)
	err := r.rdb.HSet(ctx, key,
		"status", string(model.StatusWaitingTeam),
		"bot_escalated", "1",
		"escalation_cause", cause,
		"last_activity_at", now.UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to mark conversation escalated")
		return errx.WrapRedis(err)
	}
	return nil
}

func metaFromFields(conversationID string, fields map[string]string) *model.ConversationMeta {
	meta := &model.ConversationMeta{
		ConversationID:  conversationID,
		VenueID:         fields["venue_id"],
		Channel:         model.Channel(fields["channel"]),
		CustomerID:      fields["customer_id"],
		Language:        fields["language"],
		Status:          model.ConversationStatus(fields["status"]),
		Priority:        model.Priority(fields["priority"]),
		EscalationCause: fields["escalation_cause"],
	}
	if raw := fields["zone_ids"]; raw != "" {
		// Stored as a JSON array; ignore unparseable values.
		_ = json.Unmarshal([]byte(raw), &meta.ZoneIDs)
	}
	meta.IsVIP = fields["is_vip"] == "1"
	meta.BotEscalated = fields["bot_escalated"] == "1"
	if v, err := strconv.Atoi(fields["message_count"]); err == nil {
		meta.MessageCount = v
	}
	if v, err := strconv.Atoi(fields["bot_message_count"]); err == nil {
		meta.BotMessageCount = v
	}
	if v, err := strconv.ParseFloat(fields["bot_confidence"], 64); err == nil {
		meta.BotConfidence = v
	}
	if t, err := time.Parse(time.RFC3339, fields["sla_deadline"]); err == nil {
		meta.SLADeadline = t
	}
	if t, err := time.Parse(time.RFC3339, fields["last_activity_at"]); err == nil {
		meta.LastActivityAt = t
	}
	if meta.Status == "" {
		meta.Status = model.StatusBotHandling
	}
	if meta.Priority == "" {
		meta.Priority = model.PriorityNormal
	}
	return meta
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
