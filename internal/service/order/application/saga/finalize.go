// internal/service/order/application/saga/finalize.go
package saga

import (
	"checkout/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FinalizeHandler 把订单标记为 confirmed 并持久化，这之后订单不可逆。
type FinalizeHandler struct {
	NextHandler
}

func (h *FinalizeHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Sink.Start(orderCtx.Ctx, "saga.Finalize", attribute.String("order.id", orderCtx.Order.ID))
	defer span.End()

	confirmed := orderCtx.Order.Clone()
	if err := confirmed.Confirm(orderCtx.paymentID); err != nil {
		span.RecordError(err)
		return domain.NewOrderError(domain.ErrInternal, confirmed.ID, err.Error(), err)
	}
	if err := orderCtx.Repo.Save(ctx, confirmed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist confirmed order")
		return domain.NewOrderError(domain.ErrInternal, confirmed.ID, "failed to persist confirmed order", err)
	}
	orderCtx.Order = confirmed

	span.AddEvent("order confirmed")
	orderCtx.Sink.Logger(ctx).Info().
		Str("order_id", confirmed.ID).
		Str("payment_id", confirmed.PaymentID).
		Msg("order confirmed")

	return h.executeNext(orderCtx)
}
