// internal/service/order/application/saga/notification.go
package saga

import (
	"context"

	"checkout/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
)

// NotificationHandler 是 Saga 流程的最后一步，负责发送订单确认通知。
type NotificationHandler struct {
	NextHandler
}

func (h *NotificationHandler) Handle(orderCtx *OrderContext) error {
	PublishOutcome(orderCtx.Ctx, orderCtx, "")
	return h.executeNext(orderCtx)
}

// PublishOutcome 发布订单终态事件。发布失败不是关键路径的失败，只记录错误。
func PublishOutcome(ctx context.Context, orderCtx *OrderContext, errorType string) {
	if orderCtx.Notifier == nil {
		return
	}
	outcome := domain.NewOrderOutcome(orderCtx.Order, errorType)

	ctx, span := orderCtx.Sink.Start(ctx, "saga.Notification",
		attribute.String("order.id", outcome.OrderID),
		attribute.String("event.type", outcome.EventType),
	)
	defer span.End()

	if err := orderCtx.Notifier.Publish(ctx, outcome); err != nil {
		span.RecordError(err)
		orderCtx.Sink.Logger(ctx).Error().Err(err).Str("order_id", outcome.OrderID).Msg("failed to publish order notification")
		return
	}
	span.AddEvent("notification published")
}
