// Package consumer provides a Kafka group consumer with at-least-once
// delivery. Offsets are committed only after the handler returns nil, so a
// crashed handler sees the record again on the next poll.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a single consumed Kafka record, decoupled from the client
// library so handlers stay transport-agnostic.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Handler processes one message. Returning an error leaves the offset
// uncommitted; the message is redelivered.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer polls a consumer group and dispatches records to a Handler.
type Consumer struct {
	client *kgo.Client
	handle Handler
	logger *slog.Logger
}

// New creates a group consumer over the given topics. Auto-commit is
// disabled; the run loop commits per record after successful handling.
func New(brokers []string, group string, topics []string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handle: handler, logger: logger}, nil
}

// Run polls until the context is cancelled. Handler errors stall the affected
// record (no commit) but do not stop the loop; poll errors are logged and the
// loop continues so transient broker hiccups self-heal.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()

	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		fetches.EachRecord(func(record *kgo.Record) {
			msg := &Message{
				Topic:     record.Topic,
				Partition: record.Partition,
				Offset:    record.Offset,
				Key:       record.Key,
				Value:     record.Value,
			}
			if err := c.handle.Handle(ctx, msg); err != nil {
				c.logger.Error("handler failed, offset not committed",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
				return
			}
			if err := c.client.CommitRecords(ctx, record); err != nil {
				c.logger.Error("commit failed",
					"topic", msg.Topic,
					"offset", msg.Offset,
					"error", err,
				)
			}
		})
	}
}
