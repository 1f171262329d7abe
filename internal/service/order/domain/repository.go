// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 是订单台账的出站端口。FindByID 找不到时返回 ErrOrderNotFound。
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	FindByUser(ctx context.Context, userID string) ([]*Order, error)
	FindByStatus(ctx context.Context, status Status) ([]*Order, error)
}
