package consumer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bma-social/support-core/internal/pipeline/model"
	logx "github.com/bma-social/support-core/pkg/logger"
)

// MessageProcessor runs the pipeline for one envelope.
type MessageProcessor interface {
	Process(ctx context.Context, env model.MessageEnvelope) error
}

// Config bounds one consumer instance.
type Config struct {
	PopTimeout     time.Duration
	ProcessTimeout time.Duration
	MaxRetries     int
}

// Consumer pops envelopes off the inbound queue and dispatches each to
// the processor on its own goroutine. Messages for the same
// conversation are serialized through a keyed lock; a message that
// exhausts its retries lands in the dead letter queue.
type Consumer struct {
	queue   model.Queue
	dedup   model.DedupStore
	dlq     model.DeadLetterStore
	bus     model.AlertBus
	proc    MessageProcessor
	backoff Backoff
	cfg     Config

	locks *keyedMutex
	wg    sync.WaitGroup
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(queue model.Queue, dedup model.DedupStore, dlq model.DeadLetterStore, bus model.AlertBus, proc MessageProcessor, backoff Backoff, cfg Config) *Consumer {
	return &Consumer{
		queue:   queue,
		dedup:   dedup,
		dlq:     dlq,
		bus:     bus,
		proc:    proc,
		backoff: backoff,
		cfg:     cfg,
		locks:   newKeyedMutex(),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Run consumes until ctx is canceled, then waits for in-flight messages
// to finish.
func (c *Consumer) Run(ctx context.Context) error {
	logx.Info().Msg("queue consumer started")
	defer c.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			logx.Info().Msg("queue consumer stopping")
			return nil
		default:
		}

		payload, err := c.queue.Pop(ctx, c.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				logx.Info().Msg("queue consumer stopping")
				return nil
			}
			logx.Error().Err(err).Msg("failed to pop from queue")
			_ = c.sleep(ctx, time.Second)
			continue
		}
		if payload == nil {
			continue
		}

		var env model.MessageEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			logx.Warn().Err(err).Msg("dropping unparseable message")
			continue
		}
		if err := env.Validate(); err != nil {
			logx.Warn().Err(err).Msg("dropping malformed message")
			continue
		}

		first, err := c.dedup.FirstSeen(ctx, env.ID)
		if err != nil {
			logx.Error().Err(err).Str("message_id", env.ID).Msg("dedup check failed, processing anyway")
		} else if !first {
			logx.Info().Str("message_id", env.ID).Msg("duplicate message skipped")
			continue
		}

		c.wg.Add(1)
		go func(env model.MessageEnvelope) {
			defer c.wg.Done()
			c.handle(ctx, env)
		}(env)
	}
}

// handle runs one envelope through the processor with retries, holding
// the conversation lock so turns apply in arrival order.
func (c *Consumer) handle(ctx context.Context, env model.MessageEnvelope) {
	c.locks.Lock(env.ConversationID)
	defer c.locks.Unlock(env.ConversationID)

	var lastErr error
	for attempt := 0; ; attempt++ {
		procCtx, cancel := context.WithTimeout(ctx, c.cfg.ProcessTimeout)
		err := c.proc.Process(procCtx, env)
		cancel()

		if err == nil {
			logx.Info().
				Str("message_id", env.ID).
				Str("conversation_id", env.ConversationID).
				Int("attempt", attempt).
				Msg("message processed")
			return
		}
		lastErr = err
		logx.Warn().
			Err(err).
			Str("message_id", env.ID).
			Int("attempt", attempt).
			Msg("message processing failed")

		if attempt >= c.cfg.MaxRetries {
			break
		}
		if err := c.sleep(ctx, c.backoff.Delay(attempt)); err != nil {
			break
		}
	}

	c.deadLetter(ctx, env, lastErr)
}

func (c *Consumer) deadLetter(ctx context.Context, env model.MessageEnvelope, cause error) {
	entry := model.DLQEntry{
		OriginalEnvelope: env,
		Error:            cause.Error(),
		FailedAt:         c.now().UTC(),
		RetryCount:       c.cfg.MaxRetries,
	}
	if err := c.dlq.Push(ctx, entry); err != nil {
		logx.Error().Err(err).Str("message_id", env.ID).Msg("failed to dead letter message")
		return
	}

	alert := map[string]any{
		"message_id":      env.ID,
		"conversation_id": env.ConversationID,
		"venue_id":        env.VenueID,
		"error":           entry.Error,
		"retry_count":     entry.RetryCount,
		"timestamp":       entry.FailedAt.Format(time.RFC3339),
	}
	if err := c.bus.Publish(ctx, model.AlertDLQ, alert); err != nil {
		logx.Error().Err(err).Str("message_id", env.ID).Msg("failed to publish dead letter alert")
	}
	logx.Error().
		Str("message_id", env.ID).
		Str("conversation_id", env.ConversationID).
		Str("error", entry.Error).
		Msg("message dead lettered")
}

// sleepCtx waits d or until ctx cancels, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
