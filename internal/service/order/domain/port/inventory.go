// internal/service/order/domain/port/inventory.go
package port

import (
	"context"

	"checkout/internal/service/order/domain"
)

// StockCheck 是单个商品的校验结果。
type StockCheck struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Valid     bool   `json:"valid"`
}

type ValidationResult struct {
	Valid   bool         `json:"valid"`
	Results []StockCheck `json:"results"`
}

// InventoryService 是库存服务的出站端口。
// 实现需要把预占冲突映射为 domain.ErrReservationConflict，
// 把网络错误、超时和 5xx 映射为 domain.ErrInventoryUnavailable。
type InventoryService interface {
	Validate(ctx context.Context, items []domain.Item) (ValidationResult, error)
	Reserve(ctx context.Context, orderID string, items []domain.Item) error
	Release(ctx context.Context, orderID string) error
}
