package cron

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/brandpay-backend/pkg/logger"
)

const defaultPublishTimeout = 10 * time.Second

// TriggerMessage is the payload of a published trigger.
type TriggerMessage struct {
	Target string `json:"target"`
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PubSubTrigger asks the cron worker to run a target by publishing to the cron topic.
type PubSubTrigger struct {
	publisher publisher
	logg      *logger.Logger
	timeout   time.Duration
	// wait, when set, blocks Fire until the publish settles.
	wait bool
}

// NewPubSubTrigger wraps a Pub/Sub publisher.
func NewPubSubTrigger(pub *gcppubsub.Publisher, logg *logger.Logger) (*PubSubTrigger, error) {
	if pub == nil {
		return nil, errors.New("cron publisher required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &PubSubTrigger{publisher: &gcpPublisher{Publisher: pub}, logg: logg, timeout: defaultPublishTimeout}, nil
}

// Fire publishes the target without waiting for the broker. Failures are logged only.
func (t *PubSubTrigger) Fire(ctx context.Context, target string) {
	ctx = t.logg.WithField(context.WithoutCancel(ctx), "target", target)
	data, err := json.Marshal(TriggerMessage{Target: target})
	if err != nil {
		t.logg.Error(ctx, "encode trigger", err)
		return
	}
	publishCtx, cancel := context.WithTimeout(ctx, t.timeout)
	result := t.publisher.Publish(publishCtx, &gcppubsub.Message{
		Data:       data,
		Attributes: map[string]string{"target": target},
	})
	settle := func() {
		defer cancel()
		if result == nil {
			t.logg.Warn(ctx, "trigger publisher returned no result")
			return
		}
		if _, err := result.Get(publishCtx); err != nil {
			t.logg.Error(ctx, "publish trigger", err)
		}
	}
	if t.wait {
		settle()
		return
	}
	go settle()
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}

type targetRunner interface {
	RunTarget(ctx context.Context, target string) error
}

// LocalTrigger runs targets in-process. It serves single-instance deployments and
// development where no broker is configured.
type LocalTrigger struct {
	runner targetRunner
	logg   *logger.Logger
	async  func(fn func())
}

// NewLocalTrigger builds an in-process trigger.
func NewLocalTrigger(runner targetRunner, logg *logger.Logger) (*LocalTrigger, error) {
	if runner == nil {
		return nil, errors.New("target runner required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &LocalTrigger{runner: runner, logg: logg, async: func(fn func()) { go fn() }}, nil
}

// Fire runs the target on a detached goroutine.
func (t *LocalTrigger) Fire(ctx context.Context, target string) {
	ctx = t.logg.WithField(context.WithoutCancel(ctx), "target", target)
	t.async(func() {
		if err := t.runner.RunTarget(ctx, target); err != nil {
			t.logg.Error(ctx, "triggered sweep failed", err)
		}
	})
}
