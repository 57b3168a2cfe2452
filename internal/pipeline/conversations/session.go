package conversations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/bma-social/support-core/internal/core/error"
	"github.com/bma-social/support-core/internal/pipeline/model"
	logx "github.com/bma-social/support-core/pkg/logger"
)

// RedisSessionRepository caches per-conversation session data as a JSON
// blob with a sliding TTL. A missing session is not an error; the
// classifier treats it as a fresh conversation.
type RedisSessionRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisSessionRepository(rdb redis.Cmdable, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisSessionRepository) key(conversationID string) string {
	return fmt.Sprintf("conversation:session:%s", conversationID)
}

func (r *RedisSessionRepository) Load(ctx context.Context, conversationID string) (model.SessionData, error) {
	raw, err := r.rdb.Get(ctx, r.key(conversationID)).Result()
	if err != nil {
		if err == redis.Nil {
			return model.SessionData{}, nil
		}
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to load session from redis")
		return model.SessionData{}, errx.WrapRedis(err)
	}

	var data model.SessionData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		// A corrupt session is recoverable; start over rather than fail
		// the message.
		logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("discarding unreadable session data")
		return model.SessionData{}, nil
	}
	return data, nil
}

func (r *RedisSessionRepository) Save(ctx context.Context, conversationID string, data model.SessionData) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key(conversationID), b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to save session to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.SessionRepository = (*RedisSessionRepository)(nil)
