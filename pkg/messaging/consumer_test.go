package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/protocolo/protocolo-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(t *testing.T) *Consumer {
	t.Helper()
	c, err := NewConsumer(nil, "test.queue", logger.Nop())
	require.NoError(t, err)
	return c
}

func eventBody(t *testing.T, eventType string, data any) []byte {
	t.Helper()
	ev, err := NewEvent(eventType, "test", "corr-1", data)
	require.NoError(t, err)
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	return body
}

func TestConsumer_Dispatch(t *testing.T) {
	c := newTestConsumer(t)

	var got StaffUpsertedEvent
	var correlationID string
	c.RegisterHandler(EventStaffUpserted, func(ctx context.Context, e *Event) error {
		correlationID = getCorrelationID(ctx)
		return e.UnmarshalData(&got)
	})

	body := eventBody(t, EventStaffUpserted, StaffUpsertedEvent{ClientCode: "alpha", Matricula: "123", Nome: "Maria"})

	assert.Equal(t, Ack, c.Dispatch(context.Background(), body, 0))
	assert.Equal(t, "alpha", got.ClientCode)
	assert.Equal(t, "Maria", got.Nome)
	assert.Equal(t, "corr-1", correlationID)
}

func TestConsumer_DispatchFailures(t *testing.T) {
	c := newTestConsumer(t)
	c.RegisterHandler(EventStaffUpserted, func(context.Context, *Event) error {
		return errors.New("boom")
	})
	body := eventBody(t, EventStaffUpserted, StaffUpsertedEvent{})

	assert.Equal(t, Requeue, c.Dispatch(context.Background(), body, 0))
	assert.Equal(t, DeadLetter, c.Dispatch(context.Background(), body, maxRedeliveries))
	assert.Equal(t, DeadLetter, c.Dispatch(context.Background(), []byte("{not json"), 0))
	assert.Equal(t, Ack, c.Dispatch(context.Background(), eventBody(t, "unknown.type", nil), 0))
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 0, getRetryCount(amqp.Delivery{}))

	msg := amqp.Delivery{Headers: amqp.Table{
		"x-death": []interface{}{amqp.Table{"count": int64(2)}},
	}}
	assert.Equal(t, 2, getRetryCount(msg))
}
