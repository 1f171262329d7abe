// internal/service/order/application/saga/validate.go
package saga

import (
	"context"
	"fmt"
	"strings"

	"checkout/internal/service/order/domain"
	"checkout/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ValidateHandler 只读地检查库存是否足够。不足时直接失败，不会预占也不会扣款。
type ValidateHandler struct {
	NextHandler
}

func (h *ValidateHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Sink.Start(orderCtx.Ctx, "saga.ValidateInventory",
		attribute.String("order.id", orderCtx.Order.ID),
		attribute.Int("order.item_count", len(orderCtx.Order.Items)),
	)
	defer span.End()
	orderCtx.Sink.Logger(ctx).Info().Str("order_id", orderCtx.Order.ID).Msg("validating inventory for order")

	var result port.ValidationResult
	err := orderCtx.call(ctx, orderCtx.Policy.InventoryTimeout, inventoryRetryable, func(ctx context.Context) error {
		var err error
		result, err = orderCtx.Inventory.Validate(ctx, orderCtx.Order.Items)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inventory validation failed")
		if unavailable(err, domain.ErrInventoryUnavailable) {
			return domain.NewOrderError(domain.ErrInventoryUnavailable, orderCtx.Order.ID, "inventory validation did not complete", err)
		}
		return domain.NewOrderError(domain.ErrValidation, orderCtx.Order.ID, err.Error(), err)
	}

	if !result.Valid {
		details := shortfallDetails(result)
		span.SetStatus(codes.Error, "insufficient inventory")
		span.SetAttributes(attribute.String("inventory.shortfall", details))
		return domain.NewOrderError(domain.ErrInsufficientInventory, orderCtx.Order.ID, details, nil)
	}

	span.AddEvent("inventory available for all items")
	return h.executeNext(orderCtx)
}

func shortfallDetails(result port.ValidationResult) string {
	var parts []string
	for _, r := range result.Results {
		if !r.Valid {
			parts = append(parts, fmt.Sprintf("%s requested %d, available %d", r.ProductID, r.Requested, r.Available))
		}
	}
	if len(parts) == 0 {
		return "Insufficient inventory"
	}
	return "Insufficient inventory: " + strings.Join(parts, "; ")
}
