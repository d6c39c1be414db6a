package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/brandpay-backend/pkg/logger"
)

// Consumer runs the targets published by PubSubTrigger.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	runner       targetRunner
	logg         *logger.Logger
}

// NewConsumer builds a trigger consumer.
func NewConsumer(subscription *gcppubsub.Subscriber, runner targetRunner, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("cron subscription required")
	}
	if runner == nil {
		return nil, fmt.Errorf("target runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{subscription: subscription, runner: runner, logg: logg}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		c.handle(ctx, msg.ID, msg.Data)
		// Sweeps are retried by the next trigger or cycle, never by redelivery.
		msg.Ack()
	})
}

func (c *Consumer) handle(ctx context.Context, id string, data []byte) {
	logCtx := c.logg.WithField(ctx, "message_id", id)
	var msg TriggerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logg.Error(logCtx, "failed to decode trigger", err)
		return
	}
	logCtx = c.logg.WithField(logCtx, "target", msg.Target)
	if err := c.runner.RunTarget(logCtx, msg.Target); err != nil {
		if errors.Is(err, ErrUnknownTarget) {
			c.logg.Warn(logCtx, "dropping trigger for unknown target")
			return
		}
		c.logg.Error(logCtx, "triggered sweep failed", err)
	}
}
