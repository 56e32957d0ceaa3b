package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrNoReplay = errors.New("queue: consumer has no replay function")

// ReplayFunc replays one backlog message through the dispatcher (or
// the appropriate actor operation). A nil error acks the message; any
// error triggers redelivery.
type ReplayFunc func(ctx context.Context, msg Message) error

// Consumer drains named queues in batches and replays each message.
type Consumer struct {
	queue     Queue
	names     []string
	replay    ReplayFunc
	batchSize int
	interval  time.Duration
}

// NewConsumer wires a consumer over the given queues.
func NewConsumer(q Queue, names []string, replay ReplayFunc, batchSize int, interval time.Duration) *Consumer {
	if batchSize <= 0 {
		batchSize = 10
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Consumer{
		queue:     q,
		names:     names,
		replay:    replay,
		batchSize: batchSize,
		interval:  interval,
	}
}

// OnBatch replays each message and acks or retries it individually.
// A batch-level fault (no replay function) abandons the whole batch
// without acking so the host's redelivery semantics apply.
func (c *Consumer) OnBatch(ctx context.Context, msgs []Message) {
	if len(msgs) == 0 {
		return
	}
	if c.replay == nil {
		log.Error().
			Int("batch", len(msgs)).
			Err(ErrNoReplay).
			Msg("queue_batch_abandoned")
		return
	}
	for _, msg := range msgs {
		if err := c.replay(ctx, msg); err != nil {
			log.Warn().
				Str("queue", msg.Queue).
				Str("message_id", msg.ID).
				Int("attempts", msg.Attempts).
				Err(err).
				Msg("queue_message_retry")
			if retryErr := c.queue.Retry(ctx, msg); retryErr != nil {
				log.Error().
					Str("message_id", msg.ID).
					Err(retryErr).
					Msg("queue_retry_failed")
			}
			continue
		}
		if err := c.queue.Ack(ctx, msg); err != nil {
			log.Error().
				Str("message_id", msg.ID).
				Err(err).
				Msg("queue_ack_failed")
		}
	}
}

// Run polls each queue on the configured interval until the context is
// cancelled. Receive failures abandon that queue's pass and are retried
// on the next interval.
func (c *Consumer) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range c.names {
				msgs, err := c.queue.ReceiveBatch(ctx, name, c.batchSize)
				if err != nil {
					log.Error().Str("queue", name).Err(err).Msg("queue_receive_failed")
					continue
				}
				c.OnBatch(ctx, msgs)
			}
		}
	}
}
