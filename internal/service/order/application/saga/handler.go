// internal/service/order/application/saga/handler.go
package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"checkout/internal/pkg/observability"
	"checkout/internal/pkg/retry"
	"checkout/internal/service/order/domain"
	"checkout/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/attribute"
)

// StepPolicy 是每个外部调用步骤的时间预算和重试策略。
type StepPolicy struct {
	InventoryTimeout time.Duration
	PaymentTimeout   time.Duration
	Retry            retry.Policy
}

// DefaultStepPolicy 库存调用 3 秒预算，支付调用 10 秒预算。
var DefaultStepPolicy = StepPolicy{
	InventoryTimeout: 3 * time.Second,
	PaymentTimeout:   10 * time.Second,
	Retry:            retry.DefaultPolicy,
}

// Compensation 是一个已完成步骤的逆操作。Critical 的补偿失败会让订单进入 compensating-failed。
type Compensation struct {
	Name     string
	Critical bool
	Action   func(ctx context.Context) error
}

// OrderContext 在 Saga 流程中传递上下文数据。
type OrderContext struct {
	Ctx   context.Context
	Order *domain.Order
	Sink  observability.Sink

	Repo      domain.OrderRepository
	Inventory port.InventoryService
	Payment   port.PaymentService
	Notifier  port.Notifier
	Reporter  port.ReconciliationReporter
	Policy    StepPolicy

	paymentID string
	// outcomeUnknown 表示某个有副作用的调用结果未知，失败时即使补偿成功也要送去对账。
	outcomeUnknown bool
	compensations  []Compensation
	compLock      sync.Mutex
}

// AddCompensation 把补偿压栈，触发时后注册的先执行。
func (c *OrderContext) AddCompensation(comp Compensation) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]Compensation{comp}, c.compensations...)
}

// PendingCompensations 返回尚未执行的补偿数量。
func (c *OrderContext) PendingCompensations() int {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	return len(c.compensations)
}

// TriggerCompensation 依次执行所有补偿，返回关键补偿的失败。非关键补偿失败只记录日志。
func (c *OrderContext) TriggerCompensation(ctx context.Context) error {
	c.compLock.Lock()
	defer c.compLock.Unlock()

	log := c.Sink.Logger(ctx)
	log.Info().Str("order_id", c.Order.ID).Int("count", len(c.compensations)).Msg("executing compensations")

	var failures []error
	for _, comp := range c.compensations {
		compCtx, span := c.Sink.Start(ctx, "saga.compensation."+comp.Name,
			attribute.String("order.id", c.Order.ID),
			attribute.Bool("compensation.critical", comp.Critical),
		)
		err := comp.Action(compCtx)
		if err != nil {
			span.RecordError(err)
			c.Sink.Compensation(comp.Name, "failed")
			if comp.Critical {
				failures = append(failures, fmt.Errorf("%s: %w", comp.Name, err))
			} else {
				log.Warn().Err(err).Str("order_id", c.Order.ID).Str("compensation", comp.Name).Msg("non-critical compensation failed")
			}
		} else {
			c.Sink.Compensation(comp.Name, "succeeded")
		}
		span.End()
	}
	c.compensations = nil
	return errors.Join(failures...)
}

// advance 推进订单状态并持久化，持久化失败时不修改内存中的订单。
func (c *OrderContext) advance(ctx context.Context, next domain.Status) error {
	updated := c.Order.Clone()
	if err := updated.TransitionTo(next); err != nil {
		return domain.NewOrderError(domain.ErrInternal, c.Order.ID, err.Error(), err)
	}
	if err := c.Repo.Save(ctx, updated); err != nil {
		return domain.NewOrderError(domain.ErrInternal, c.Order.ID, "failed to persist order status", err)
	}
	c.Order = updated
	return nil
}

// call 在 budget 内按重试策略执行 op。retryable 返回 false 的错误不再重试。
func (c *OrderContext) call(ctx context.Context, budget time.Duration, retryable func(error) bool, op func(ctx context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	attempt := 0
	return retry.Do(stepCtx, c.Policy.Retry, func(ctx context.Context) error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return retry.Permanent(err)
		}
		c.Sink.Logger(ctx).Warn().Err(err).Str("order_id", c.Order.ID).Int("attempt", attempt).Msg("step failed, will retry")
		return err
	})
}

func inventoryRetryable(err error) bool {
	return errors.Is(err, domain.ErrInventoryUnavailable)
}

func paymentRetryable(err error) bool {
	return errors.Is(err, domain.ErrPaymentUnavailable)
}

// unavailable 判断错误是否是超时或服务不可用。
func unavailable(err error, sentinel error) bool {
	return errors.Is(err, sentinel) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// Handler 是责任链中的一个 saga 步骤。
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}

// BuildChain 按 validate → reserve → authorize → finalize → notify 的顺序组装责任链。
func BuildChain() Handler {
	chain := new(ValidateHandler)
	chain.
		SetNext(new(ReserveHandler)).
		SetNext(new(PaymentHandler)).
		SetNext(new(FinalizeHandler)).
		SetNext(new(NotificationHandler))
	return chain
}
