// internal/service/order/infrastructure/adapter/local_adapters.go
package adapter

import (
	"context"
	"errors"
	"fmt"

	invapp "checkout/internal/service/inventory/application"
	invdomain "checkout/internal/service/inventory/domain"
	"checkout/internal/service/order/domain"
	"checkout/internal/service/order/domain/port"
	payapp "checkout/internal/service/payment/application"
	paydomain "checkout/internal/service/payment/domain"
)

// InventoryLocalAdapter 在同一进程内直接调用库存服务，用于单进程部署和测试。
type InventoryLocalAdapter struct {
	svc *invapp.Service
}

func NewInventoryLocalAdapter(svc *invapp.Service) *InventoryLocalAdapter {
	return &InventoryLocalAdapter{svc: svc}
}

func toLocalItems(items []domain.Item) []invdomain.Item {
	out := make([]invdomain.Item, len(items))
	for i, it := range items {
		out[i] = invdomain.Item{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}

func classifyInventory(err error) error {
	switch {
	case errors.Is(err, invdomain.ErrReservationConflict):
		return fmt.Errorf("%w: %w", domain.ErrReservationConflict, err)
	case errors.Is(err, invdomain.ErrInvalidItems), errors.Is(err, invdomain.ErrUnknownProduct):
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrInventoryUnavailable, err)
	}
}

func (a *InventoryLocalAdapter) Validate(ctx context.Context, items []domain.Item) (port.ValidationResult, error) {
	res, err := a.svc.Validate(ctx, toLocalItems(items))
	if err != nil {
		return port.ValidationResult{}, classifyInventory(err)
	}
	out := port.ValidationResult{Valid: res.Valid, Results: make([]port.StockCheck, len(res.Results))}
	for i, r := range res.Results {
		out.Results[i] = port.StockCheck{ProductID: r.ProductID, Requested: r.Requested, Available: r.Available, Valid: r.Valid}
	}
	return out, nil
}

func (a *InventoryLocalAdapter) Reserve(ctx context.Context, orderID string, items []domain.Item) error {
	if _, err := a.svc.Reserve(ctx, orderID, toLocalItems(items)); err != nil {
		return classifyInventory(err)
	}
	return nil
}

func (a *InventoryLocalAdapter) Release(ctx context.Context, orderID string) error {
	if _, err := a.svc.Release(ctx, orderID); err != nil {
		return classifyInventory(err)
	}
	return nil
}

func (a *InventoryLocalAdapter) Products(ctx context.Context) ([]port.CatalogProduct, error) {
	products, err := a.svc.List(ctx)
	if err != nil {
		return nil, classifyInventory(err)
	}
	out := make([]port.CatalogProduct, len(products))
	for i, p := range products {
		out[i] = port.CatalogProduct{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock, Reserved: p.Reserved, Available: p.Available()}
	}
	return out, nil
}

// PaymentLocalAdapter 在同一进程内直接调用支付授权器。
type PaymentLocalAdapter struct {
	authorizer *payapp.Authorizer
}

func NewPaymentLocalAdapter(authorizer *payapp.Authorizer) *PaymentLocalAdapter {
	return &PaymentLocalAdapter{authorizer: authorizer}
}

func (a *PaymentLocalAdapter) Authorize(ctx context.Context, req port.AuthorizeRequest) (port.Authorization, error) {
	p, err := a.authorizer.Authorize(ctx, paydomain.AuthorizeRequest{
		OrderID: req.OrderID,
		Amount:  req.Amount,
		Method:  req.Method,
		UserID:  req.UserID,
	})
	if err != nil {
		if errors.Is(err, paydomain.ErrInvalidRequest) {
			return port.Authorization{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		return port.Authorization{}, fmt.Errorf("%w: %w", domain.ErrPaymentUnavailable, err)
	}
	return port.Authorization{PaymentID: p.ID, Status: string(p.Status), Reason: p.DeclineReason}, nil
}

func (a *PaymentLocalAdapter) Refund(ctx context.Context, orderID string) error {
	_, err := a.authorizer.Refund(ctx, orderID)
	if err != nil && !errors.Is(err, paydomain.ErrPaymentNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrPaymentUnavailable, err)
	}
	return nil
}
