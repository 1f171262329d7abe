// internal/service/order/application/saga/abort.go
package saga

import (
	"context"
	"errors"

	"checkout/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Abort 在某个步骤失败后执行补偿，把订单落到终态并发布结果事件，返回对调用方的最终错误。
// 补偿使用脱离调用方取消的 ctx，每个补偿仍受自己的步骤预算约束。
func (c *OrderContext) Abort(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)
	ctx, span := c.Sink.Start(ctx, "saga.Abort",
		attribute.String("order.id", c.Order.ID),
		attribute.String("order.status_at_failure", string(c.Order.Status)),
	)
	defer span.End()
	log := c.Sink.Logger(ctx)

	final := domain.StatusFailed
	result := cause
	if c.PendingCompensations() > 0 {
		if err := c.settle(ctx, domain.StatusCompensating, ""); err != nil {
			log.Error().Err(err).Str("order_id", c.Order.ID).Msg("failed to persist compensating status")
		}
		if compErr := c.TriggerCompensation(ctx); compErr != nil {
			final = domain.StatusCompensatingFailed
			result = domain.NewOrderError(domain.ErrCompensationFailed, c.Order.ID,
				"Order failed and compensation could not be completed, manual reconciliation required",
				errors.Join(cause, compErr))

			span.SetAttributes(attribute.Bool("critical.error", true))
			log.Error().
				Bool("critical", true).
				Err(compErr).
				Str("order_id", c.Order.ID).
				Str("cause", cause.Error()).
				Msg("CRITICAL: compensation failed, order requires manual reconciliation")
		}
	}

	if err := c.settle(ctx, final, cause.Error()); err != nil {
		log.Error().Err(err).Str("order_id", c.Order.ID).Str("status", string(final)).Msg("failed to persist terminal order status")
	}

	if final == domain.StatusCompensatingFailed || c.outcomeUnknown {
		c.report(ctx, result)
	}

	span.RecordError(result)
	span.SetStatus(codes.Error, domain.KindName(result))
	PublishOutcome(ctx, c, domain.KindName(result))
	return result
}

// report 把订单交给对账。未配置 Reporter 时只留下日志。
func (c *OrderContext) report(ctx context.Context, result error) {
	log := c.Sink.Logger(ctx)
	if c.Reporter == nil {
		log.Warn().Str("order_id", c.Order.ID).Str("status", string(c.Order.Status)).Msg("order needs reconciliation but no reporter is configured")
		return
	}
	if err := c.Reporter.Report(ctx, c.Order, result); err != nil {
		log.Error().Bool("critical", true).Err(err).Str("order_id", c.Order.ID).Msg("failed to report order for reconciliation")
	}
}

// settle 推进到失败路径上的状态。即使持久化失败，内存中的订单也会前进，保证后续状态合法。
func (c *OrderContext) settle(ctx context.Context, next domain.Status, reason string) error {
	updated := c.Order.Clone()
	var err error
	if next == domain.StatusCompensating {
		err = updated.TransitionTo(next)
	} else {
		err = updated.Fail(next, reason)
	}
	if err != nil {
		return err
	}
	c.Order = updated
	return c.Repo.Save(ctx, updated)
}
