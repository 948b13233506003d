package trigger

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
)

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Consumer receives submission events from Pub/Sub.
type Consumer struct {
	subscription receiver
	handler      *Handler
	logg         *logger.Logger
}

func NewConsumer(subscription receiver, handler *Handler, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("submission subscription required")
	}
	if handler == nil {
		return nil, fmt.Errorf("trigger handler required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{subscription: subscription, handler: handler, logg: logg}, nil
}

// Run starts the receive loop until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Data).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

// process acks everything except an unavailable idempotency store, which
// fails before the pipeline runs. Pipeline failures are logged by the
// pipeline and never redelivered.
func (c *Consumer) process(ctx context.Context, messageID string, data []byte) processResult {
	logCtx := c.logg.WithField(ctx, "message_id", messageID)

	event, err := Decode(data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode submission event", err)
		return processResult{}
	}
	if event.EventID == "" {
		event.EventID = messageID
	}

	_, err = c.handler.Handle(ctx, enums.TriggerSourcePubSub, event)
	switch {
	case err == nil, errors.Is(err, ErrDuplicate):
		return processResult{}
	case errors.Is(err, errDedupeUnavailable):
		c.logg.Error(logCtx, "submission event deferred", err)
		return processResult{nack: true}
	default:
		return processResult{}
	}
}
