package consumer

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

const (
	dlqKey        = "messages:dlq"
	dlqArchiveKey = "messages:dlq:archive"
)

// RedisQueue pops inbound envelopes from a Redis list with BRPOP.
type RedisQueue struct {
	rdb redis.Cmdable
	key string
}

func NewRedisQueue(rdb redis.Cmdable, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	rows, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errx.WrapRedis(err)
	}
	// BRPOP returns [key, value].
	if len(rows) < 2 {
		return nil, nil
	}
	return []byte(rows[1]), nil
}

// RedisDedupStore remembers message IDs with SETNX inside a rolling
// window so redelivered envelopes are processed at most once.
type RedisDedupStore struct {
	rdb    redis.Cmdable
	window time.Duration
}

func NewRedisDedupStore(rdb redis.Cmdable, window time.Duration) *RedisDedupStore {
	return &RedisDedupStore{rdb: rdb, window: window}
}

func (d *RedisDedupStore) FirstSeen(ctx context.Context, messageID string) (bool, error) {
	key := fmt.Sprintf("msg:seen:%s", messageID)
	ok, err := d.rdb.SetNX(ctx, key, "1", d.window).Result()
	if err != nil {
		return false, errx.WrapRedis(err)
	}
	return ok, nil
}

// RedisDeadLetterStore keeps exhausted messages in a Redis list, with a
// second list as the archive for entries past the escalation window.
type RedisDeadLetterStore struct {
	rdb redis.Cmdable
}

func NewRedisDeadLetterStore(rdb redis.Cmdable) *RedisDeadLetterStore {
	return &RedisDeadLetterStore{rdb: rdb}
}

func (s *RedisDeadLetterStore) Push(ctx context.Context, entry model.DLQEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}
	if err := s.rdb.LPush(ctx, dlqKey, b).Err(); err != nil {
		logx.Error().Err(err).Str("message_id", entry.OriginalEnvelope.ID).Msg("failed to push to dead letter queue")
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisDeadLetterStore) Scan(ctx context.Context, limit int) ([]model.DLQEntry, error) {
	rows, err := s.rdb.LRange(ctx, dlqKey, 0, int64(limit-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errx.WrapRedis(err)
	}

	entries := make([]model.DLQEntry, 0, len(rows))
	for _, raw := range rows {
		var e model.DLQEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			logx.Warn().Err(err).Msg("skipping unreadable dead letter entry")
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *RedisDeadLetterStore) Remove(ctx context.Context, entry model.DLQEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}
	if err := s.rdb.LRem(ctx, dlqKey, 1, b).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisDeadLetterStore) Archive(ctx context.Context, entry model.DLQEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}
	pipe := s.rdb.Pipeline()
	pipe.LPush(ctx, dlqArchiveKey, b)
	pipe.LRem(ctx, dlqKey, 1, b)
	if _, err := pipe.Exec(ctx); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

var (
	_ model.Queue           = (*RedisQueue)(nil)
	_ model.DedupStore      = (*RedisDedupStore)(nil)
	_ model.DeadLetterStore = (*RedisDeadLetterStore)(nil)
)
