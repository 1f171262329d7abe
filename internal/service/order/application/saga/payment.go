// internal/service/order/application/saga/payment.go
package saga

import (
	"context"

	"checkout/internal/service/order/domain"
	"checkout/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const compensationRefundPayment = "refund_payment"

// PaymentHandler 负责支付授权步骤。重试复用同一个 orderId，支付服务保证不会重复扣款。
type PaymentHandler struct {
	NextHandler
}

func (h *PaymentHandler) Handle(orderCtx *OrderContext) error {
	order := orderCtx.Order
	ctx, span := orderCtx.Sink.Start(orderCtx.Ctx, "saga.PaymentAuthorize",
		attribute.String("order.id", order.ID),
		attribute.Float64("order.total_amount", order.TotalAmount),
		attribute.String("order.payment_method", order.PaymentMethod),
	)
	defer span.End()

	if err := orderCtx.advance(ctx, domain.StatusPaying); err != nil {
		span.RecordError(err)
		return err
	}
	orderCtx.Sink.Logger(ctx).Info().Str("order_id", order.ID).Float64("amount", order.TotalAmount).Msg("processing payment for order")

	req := port.AuthorizeRequest{
		OrderID: order.ID,
		UserID:  order.UserID,
		Amount:  order.TotalAmount,
		Method:  order.PaymentMethod,
	}
	var auth port.Authorization
	err := orderCtx.call(ctx, orderCtx.Policy.PaymentTimeout, paymentRetryable, func(ctx context.Context) error {
		var err error
		auth, err = orderCtx.Payment.Authorize(ctx, req)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment authorization failed")
		if unavailable(err, domain.ErrPaymentUnavailable) {
			// 授权可能在超时后才落账，尽力退款；退款对不存在的支付是空操作。
			orderCtx.AddCompensation(refundCompensation(orderCtx, false))
			orderCtx.outcomeUnknown = true
			return domain.NewOrderError(domain.ErrPaymentUnavailable, order.ID, "payment authorization did not complete", err)
		}
		return domain.NewOrderError(domain.ErrInternal, order.ID, "payment request rejected", err)
	}

	span.SetAttributes(
		attribute.String("payment.id", auth.PaymentID),
		attribute.String("payment.status", auth.Status),
	)
	if auth.Status != port.PaymentAuthorized {
		span.SetStatus(codes.Error, "payment declined")
		reason := auth.Reason
		if reason == "" {
			reason = "Payment declined"
		}
		return domain.NewOrderError(domain.ErrPaymentDeclined, order.ID, reason, nil)
	}

	orderCtx.AddCompensation(refundCompensation(orderCtx, true))
	orderCtx.paymentID = auth.PaymentID
	span.AddEvent("payment authorized")

	return h.executeNext(orderCtx)
}

func refundCompensation(orderCtx *OrderContext, critical bool) Compensation {
	orderID := orderCtx.Order.ID
	return Compensation{
		Name:     compensationRefundPayment,
		Critical: critical,
		Action: func(ctx context.Context) error {
			return orderCtx.call(ctx, orderCtx.Policy.PaymentTimeout, paymentRetryable, func(ctx context.Context) error {
				return orderCtx.Payment.Refund(ctx, orderID)
			})
		},
	}
}
