package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	errx "github.com/bma-social/support-core/internal/core/error"
	"github.com/bma-social/support-core/internal/pipeline/model"
	logx "github.com/bma-social/support-core/pkg/logger"
)

// RedisAlertBus publishes alert and escalation events over Redis
// pub/sub. Delivery is fire-and-forget; subscribers that are offline
// miss events, which is acceptable for operational alerts.
type RedisAlertBus struct {
	rdb redis.Cmdable
}

func NewRedisAlertBus(rdb redis.Cmdable) *RedisAlertBus {
	return &RedisAlertBus{rdb: rdb}
}

func (b *RedisAlertBus) Publish(ctx context.Context, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", channel, err)
	}
	if err := b.rdb.Publish(ctx, channel, body).Err(); err != nil {
		logx.Error().Err(err).Str("channel", channel).Msg("failed to publish event")
		return errx.WrapRedis(err)
	}
	logx.Debug().Str("channel", channel).Msg("event published")
	return nil
}

var _ model.AlertBus = (*RedisAlertBus)(nil)
