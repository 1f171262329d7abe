package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"checkout/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed int
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed += len(msgs)
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) Committed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.committed
}

type collectingNotifier struct {
	mu       sync.Mutex
	outcomes []domain.OrderOutcome
}

func (c *collectingNotifier) Publish(_ context.Context, o domain.OrderOutcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
	return nil
}

func (c *collectingNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

func TestOutcomeConsumerDeliversAndCommits(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 2)}
	target := &collectingNotifier{}

	payload, err := json.Marshal(domain.OrderOutcome{EventType: domain.EventOrderConfirmed, OrderID: "order-1", UserID: "user-1"})
	require.NoError(t, err)
	reader.msgs <- kafka.Message{Value: []byte("not json")}
	reader.msgs <- kafka.Message{Value: payload}

	ctx, cancel := context.WithCancel(context.Background())
	consumer := NewOutcomeConsumerAdapter(reader, target)
	consumer.Start(ctx)

	require.Eventually(t, func() bool { return reader.Committed() == 2 }, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, consumer.Stop())

	require.Equal(t, 1, target.count())
	assert.Equal(t, "order-1", target.outcomes[0].OrderID)
}
