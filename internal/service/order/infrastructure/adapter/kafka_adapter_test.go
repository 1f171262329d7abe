package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"checkout/internal/pkg/mq"
	"checkout/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestNotificationAdapterKeysByUser(t *testing.T) {
	w := &fakeWriter{}
	o, err := domain.NewOrder("order-1", "user-1", laptop, nil, "credit_card")
	require.NoError(t, err)
	require.NoError(t, o.Fail(domain.StatusFailed, "declined"))

	require.NoError(t, NewNotificationKafkaAdapter(w).Publish(context.Background(), domain.NewOrderOutcome(o, "PaymentDeclinedError")))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "user-1", string(w.msgs[0].Key))
	assert.Equal(t, domain.EventOrderFailed, mq.KafkaHeaderCarrier(w.msgs[0].Headers).Get(HeaderEventType))

	var got domain.OrderOutcome
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "PaymentDeclinedError", got.ErrorType)
}

func TestReconciliationAdapter(t *testing.T) {
	w := &fakeWriter{}
	o, err := domain.NewOrder("order-1", "user-1", laptop, nil, "credit_card")
	require.NoError(t, err)
	cause := domain.NewOrderError(domain.ErrCompensationFailed, "order-1", "release failed", nil)

	require.NoError(t, NewReconciliationKafkaAdapter(w).Report(context.Background(), o, cause))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-1", string(w.msgs[0].Key))

	var task ReconciliationTask
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &task))
	assert.Equal(t, "CompensationFailedError", task.ErrorType)
	assert.Equal(t, "order-1", task.Order.ID)

	w.err = errors.New("broker down")
	assert.Error(t, NewReconciliationKafkaAdapter(w).Report(context.Background(), o, cause))
}
