package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/LeventeLantos/lead-outreach/internal/service"
)

type EventHandler interface {
	Handle(ctx context.Context, ev service.Event) (service.Outcome, error)
}

type Consumer struct {
	ch       *amqp.Channel
	queue    string
	handler  EventHandler
	prefetch int
	log      *zap.Logger
}

func NewConsumer(ch *amqp.Channel, queue string, h EventHandler, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	if queue == "" {
		queue = DefaultQueue
	}
	return &Consumer{
		ch:       ch,
		queue:    queue,
		handler:  h,
		prefetch: 10,
		log:      log.With(zap.String("component", "queue_consumer"), zap.String("queue", queue)),
	}
}

// Run consumes until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	c.log.Info("consumer started")
	for {
		select {
		case <-ctx.Done():
			c.log.Info("consumer stopped")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks processed and unknown-lead events. Malformed payloads and
// handler failures are rejected without requeue so they land in the DLQ.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var ev service.Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		c.log.Warn("malformed event rejected", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	out, err := c.handler.Handle(ctx, ev)
	var nf *service.LeadNotFoundError
	switch {
	case errors.As(err, &nf):
		c.log.Info("event for unknown lead dropped", zap.String("sid", ev.MessageSID))
		_ = d.Ack(false)
	case err != nil:
		c.log.Error("event handling failed", zap.String("sid", ev.MessageSID), zap.Error(err))
		_ = d.Nack(false, false)
	default:
		c.log.Debug("event handled",
			zap.String("kind", string(out.Kind)),
			zap.String("lead_id", out.LeadID),
			zap.String("status", string(out.Status)),
		)
		_ = d.Ack(false)
	}
}
