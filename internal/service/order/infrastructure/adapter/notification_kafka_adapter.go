// internal/service/order/infrastructure/adapter/notification_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"

	"checkout/internal/pkg/mq"
	"checkout/internal/service/order/domain"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// HeaderEventType 是消息头中事件类型的 key，消费者据此过滤。
const HeaderEventType = "event-type"

// NotificationKafkaAdapter 实现了 port.Notifier 接口，订单事件按 userId 分区。
type NotificationKafkaAdapter struct {
	writer mq.MessageWriter
}

// NewNotificationKafkaAdapter 创建一个新的通知生产者适配器。
func NewNotificationKafkaAdapter(writer mq.MessageWriter) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

func (a *NotificationKafkaAdapter) Publish(ctx context.Context, outcome domain.OrderOutcome) error {
	eventBytes, err := json.Marshal(outcome)
	if err != nil {
		return errors.Wrap(err, "failed to marshal order outcome")
	}
	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer, []byte(outcome.UserID), eventBytes,
		kafka.Header{Key: HeaderEventType, Value: []byte(outcome.EventType)})
}
