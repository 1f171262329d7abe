// internal/service/order/application/saga/inventory.go
package saga

import (
	"context"
	"errors"

	"checkout/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const compensationReleaseInventory = "release_inventory"

// ReserveHandler 负责库存预占步骤。
type ReserveHandler struct {
	NextHandler
}

func (h *ReserveHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Sink.Start(orderCtx.Ctx, "saga.InventoryReserve", attribute.String("order.id", orderCtx.Order.ID))
	defer span.End()
	orderID := orderCtx.Order.ID

	if err := orderCtx.advance(ctx, domain.StatusReserving); err != nil {
		span.RecordError(err)
		return err
	}

	err := orderCtx.call(ctx, orderCtx.Policy.InventoryTimeout, inventoryRetryable, func(ctx context.Context) error {
		return orderCtx.Inventory.Reserve(ctx, orderID, orderCtx.Order.Items)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inventory reservation failed")

		if errors.Is(err, domain.ErrReservationConflict) {
			// 冲突时库存服务保证一个都没有预占，无需补偿。
			return domain.NewOrderError(domain.ErrReservationConflict, orderID, "Insufficient inventory after validation, another order reserved the stock first", err)
		}
		if unavailable(err, domain.ErrInventoryUnavailable) {
			// 请求可能已经在库存服务落地，按 orderId 释放是幂等的。
			orderCtx.AddCompensation(releaseCompensation(orderCtx))
			return domain.NewOrderError(domain.ErrInventoryUnavailable, orderID, "inventory reservation did not complete", err)
		}
		return domain.NewOrderError(domain.ErrValidation, orderID, err.Error(), err)
	}

	orderCtx.AddCompensation(releaseCompensation(orderCtx))
	span.AddEvent("all items reserved")
	orderCtx.Sink.Logger(ctx).Info().Str("order_id", orderID).Msg("inventory reserved")

	return h.executeNext(orderCtx)
}

func releaseCompensation(orderCtx *OrderContext) Compensation {
	orderID := orderCtx.Order.ID
	return Compensation{
		Name:     compensationReleaseInventory,
		Critical: true,
		Action: func(ctx context.Context) error {
			return orderCtx.call(ctx, orderCtx.Policy.InventoryTimeout, inventoryRetryable, func(ctx context.Context) error {
				return orderCtx.Inventory.Release(ctx, orderID)
			})
		},
	}
}
