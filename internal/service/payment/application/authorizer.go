// internal/service/payment/application/authorizer.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout/internal/pkg/keylock"
	"checkout/internal/pkg/kvstore"
	"checkout/internal/pkg/observability"
	"checkout/internal/service/payment/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const defaultLockTimeout = 30 * time.Second

// Authorizer 拥有支付台账。台账以 orderId 为键，先写入者胜出。
type Authorizer struct {
	ledger kvstore.Store[domain.Payment]
	// index 把 paymentId 映射回 orderId。
	index  kvstore.Store[string]
	locker keylock.Locker
	faults domain.FaultStrategy
	sink   observability.Sink

	group       singleflight.Group
	lockTimeout time.Duration
}

func NewAuthorizer(ledger kvstore.Store[domain.Payment], index kvstore.Store[string], locker keylock.Locker, faults domain.FaultStrategy, sink observability.Sink) *Authorizer {
	return &Authorizer{
		ledger:      ledger,
		index:       index,
		locker:      locker,
		faults:      faults,
		sink:        sink,
		lockTimeout: defaultLockTimeout,
	}
}

func lockKey(orderID string) string { return "payment:order:" + orderID }

// Authorize 对同一个 orderId 只执行一次真正的授权，之后的调用都返回台账中的结果。
// 被拒绝的支付同样会被记录并原样返回，不会重新掷骰子。
//
// 授权一旦开始就会执行完毕并落账，即使调用方的 ctx 先结束；调用方此时拿到 ctx 的错误，
// 重试时会读到已落账的结果。
func (a *Authorizer) Authorize(ctx context.Context, req domain.AuthorizeRequest) (domain.Payment, error) {
	if err := req.Validate(); err != nil {
		return domain.Payment{}, err
	}

	if existing, err := a.ledger.Get(ctx, req.OrderID); err == nil {
		return existing, nil
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		return domain.Payment{}, err
	}

	detached := context.WithoutCancel(ctx)
	ch := a.group.DoChan(req.OrderID, func() (any, error) {
		return a.authorizeOnce(detached, req)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Payment{}, res.Err
		}
		return res.Val.(domain.Payment), nil
	case <-ctx.Done():
		return domain.Payment{}, ctx.Err()
	}
}

func (a *Authorizer) authorizeOnce(ctx context.Context, req domain.AuthorizeRequest) (domain.Payment, error) {
	ctx, span := a.sink.Start(ctx, "payment.Authorize",
		attribute.String("order.id", req.OrderID),
		attribute.Float64("payment.amount", req.Amount),
		attribute.String("payment.method", req.Method),
	)
	defer span.End()
	log := a.sink.Logger(ctx)

	lockCtx, cancel := context.WithTimeout(ctx, a.lockTimeout)
	defer cancel()
	unlock, err := a.locker.Lock(lockCtx, lockKey(req.OrderID))
	if err != nil {
		span.RecordError(err)
		return domain.Payment{}, fmt.Errorf("lock payment for order %s: %w", req.OrderID, err)
	}
	defer unlock()

	if existing, err := a.ledger.Get(ctx, req.OrderID); err == nil {
		span.AddEvent("payment already recorded")
		return existing, nil
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		return domain.Payment{}, err
	}

	outcome, err := a.faults.Decide(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fault strategy failed")
		return domain.Payment{}, err
	}
	if outcome.Latency > 0 {
		span.AddEvent("simulated gateway latency", trace.WithAttributes(attribute.Int64("latency_ms", outcome.Latency.Milliseconds())))
		time.Sleep(outcome.Latency)
	}

	payment := domain.Payment{
		ID:        "pay_" + uuid.NewString(),
		OrderID:   req.OrderID,
		UserID:    req.UserID,
		Amount:    req.Amount,
		Method:    req.Method,
		Status:    domain.StatusAuthorized,
		CreatedAt: time.Now().UTC(),
	}
	if outcome.Decline {
		payment.Status = domain.StatusDeclined
		payment.DeclineReason = outcome.Reason
	}

	stored, created, err := a.ledger.PutIfAbsent(ctx, req.OrderID, payment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger write failed")
		return domain.Payment{}, err
	}
	if !created {
		return stored, nil
	}
	if err := a.index.Put(ctx, stored.ID, stored.OrderID); err != nil {
		log.Error().Err(err).Str("payment_id", stored.ID).Msg("failed to index payment")
	}

	a.sink.PaymentProcessed(string(stored.Status), stored.Method, stored.Amount)
	span.SetAttributes(
		attribute.String("payment.id", stored.ID),
		attribute.String("payment.status", string(stored.Status)),
	)
	if stored.Status == domain.StatusDeclined {
		span.SetStatus(codes.Error, "payment declined")
		a.sink.Error("payment_failure")
		log.Warn().Str("order_id", stored.OrderID).Str("payment_id", stored.ID).Str("reason", stored.DeclineReason).Msg("payment declined")
	} else {
		log.Info().Str("order_id", stored.OrderID).Str("payment_id", stored.ID).Float64("amount", stored.Amount).Msg("payment authorized")
	}
	return stored, nil
}

// Refund 把 authorized 的支付改为 refunded。已退款或已拒绝时不做任何修改，返回当前记录。
func (a *Authorizer) Refund(ctx context.Context, orderID string) (domain.Payment, error) {
	ctx, span := a.sink.Start(ctx, "payment.Refund", attribute.String("order.id", orderID))
	defer span.End()

	unlock, err := a.locker.Lock(ctx, lockKey(orderID))
	if err != nil {
		return domain.Payment{}, fmt.Errorf("lock payment for order %s: %w", orderID, err)
	}
	defer unlock()

	p, err := a.ledger.Get(ctx, orderID)
	if errors.Is(err, kvstore.ErrNotFound) {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	if err != nil {
		return domain.Payment{}, err
	}
	if p.Status != domain.StatusAuthorized {
		span.AddEvent("refund is a no-op", trace.WithAttributes(attribute.String("payment.status", string(p.Status))))
		return p, nil
	}

	now := time.Now().UTC()
	p.Status = domain.StatusRefunded
	p.RefundedAt = &now
	if err := a.ledger.Put(ctx, orderID, p); err != nil {
		span.RecordError(err)
		return domain.Payment{}, err
	}
	a.sink.PaymentProcessed(string(p.Status), p.Method, p.Amount)
	a.sink.Logger(ctx).Info().Str("order_id", orderID).Str("payment_id", p.ID).Msg("payment refunded")
	return p, nil
}

// Get 按 paymentId 查询。
func (a *Authorizer) Get(ctx context.Context, paymentID string) (domain.Payment, error) {
	orderID, err := a.index.Get(ctx, paymentID)
	if errors.Is(err, kvstore.ErrNotFound) {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	if err != nil {
		return domain.Payment{}, err
	}
	return a.GetByOrder(ctx, orderID)
}

// GetByOrder 按 orderId 查询。
func (a *Authorizer) GetByOrder(ctx context.Context, orderID string) (domain.Payment, error) {
	p, err := a.ledger.Get(ctx, orderID)
	if errors.Is(err, kvstore.ErrNotFound) {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return p, err
}
