package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/LeventeLantos/lead-outreach/internal/service"
)

type fakeAck struct {
	acks     int
	nacks    int
	requeued bool
}

func (f *fakeAck) Ack(uint64, bool) error {
	f.acks++
	return nil
}

func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacks++
	f.requeued = requeue
	return nil
}

func (f *fakeAck) Reject(_ uint64, requeue bool) error { return f.Nack(0, false, requeue) }

type fakeHandler struct {
	got []service.Event
	err error
}

func (h *fakeHandler) Handle(_ context.Context, ev service.Event) (service.Outcome, error) {
	h.got = append(h.got, ev)
	return service.Outcome{Kind: service.KindStatus}, h.err
}

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (p *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	p.exchange, p.key, p.msg = exchange, key, msg
	return p.err
}

func delivery(t *testing.T, ack amqp.Acknowledger, body []byte) amqp.Delivery {
	t.Helper()
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body}
}

func TestProducer_Publish(t *testing.T) {
	pub := &fakePublisher{}
	ev := service.Event{From: "whatsapp:+15551234567", Status: "delivered", MessageSID: "SM1"}

	require.NoError(t, NewProducer(pub).Publish(context.Background(), ev))

	assert.Equal(t, ExchangeName, pub.exchange)
	assert.Equal(t, RoutingKey, pub.key)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, "SM1", pub.msg.MessageId)

	var got service.Event
	require.NoError(t, json.Unmarshal(pub.msg.Body, &got))
	assert.Equal(t, ev, got)
}

func TestProducer_PublishError(t *testing.T) {
	pub := &fakePublisher{err: amqp.ErrClosed}
	err := NewProducer(pub).Publish(context.Background(), service.Event{Body: "hi"})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestConsumer_Handle(t *testing.T) {
	body, err := json.Marshal(service.Event{From: "whatsapp:+15551234567", Body: "yes"})
	require.NoError(t, err)

	cases := []struct {
		name      string
		body      []byte
		handleErr error
		wantAck   int
		wantNack  int
		wantCalls int
	}{
		{name: "handled", body: body, wantAck: 1, wantCalls: 1},
		{name: "malformed", body: []byte("{"), wantNack: 1},
		{name: "unknown lead", body: body, handleErr: &service.LeadNotFoundError{Phone: "+1"}, wantAck: 1, wantCalls: 1},
		{name: "handler failure", body: body, handleErr: errors.New("db down"), wantNack: 1, wantCalls: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &fakeHandler{err: tc.handleErr}
			c := NewConsumer(nil, "", h, zaptest.NewLogger(t))
			ack := &fakeAck{}

			c.handle(context.Background(), delivery(t, ack, tc.body))

			assert.Equal(t, tc.wantAck, ack.acks)
			assert.Equal(t, tc.wantNack, ack.nacks)
			assert.False(t, ack.requeued)
			assert.Len(t, h.got, tc.wantCalls)
		})
	}
}

func TestDLQName(t *testing.T) {
	assert.Equal(t, "q.provider-events.dlq", DLQName(DefaultQueue))
}
