// internal/service/order/domain/port/notification.go
package port

import (
	"context"

	"checkout/internal/service/order/domain"
)

// Notifier 发布订单终态事件。发布失败不影响订单结果。
type Notifier interface {
	Publish(ctx context.Context, outcome domain.OrderOutcome) error
}

// ReconciliationReporter 接收补偿失败、需要人工对账的订单。
type ReconciliationReporter interface {
	Report(ctx context.Context, order *domain.Order, cause error) error
}
