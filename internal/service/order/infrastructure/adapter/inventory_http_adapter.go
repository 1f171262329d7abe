// internal/service/order/infrastructure/adapter/inventory_http_adapter.go
package adapter

import (
	"context"

	"checkout/internal/pkg/httpclient"
	"checkout/internal/service/order/domain"
	"checkout/internal/service/order/domain/port"
)

// InventoryHTTPAdapter 实现了 port.InventoryService 和 port.Catalog 接口。
type InventoryHTTPAdapter struct {
	client *httpclient.Client
}

// NewInventoryHTTPAdapter 创建一个新的库存服务适配器。
func NewInventoryHTTPAdapter(client *httpclient.Client) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client}
}

type inventoryItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type inventoryRequest struct {
	OrderID string          `json:"orderId,omitempty"`
	Items   []inventoryItem `json:"items,omitempty"`
}

func toInventoryItems(items []domain.Item) []inventoryItem {
	out := make([]inventoryItem, len(items))
	for i, it := range items {
		out[i] = inventoryItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}

func (a *InventoryHTTPAdapter) Validate(ctx context.Context, items []domain.Item) (port.ValidationResult, error) {
	var result port.ValidationResult
	err := a.client.PostJSON(ctx, InventoryServiceName, "/inventory/validate", inventoryRequest{Items: toInventoryItems(items)}, &result)
	if err != nil {
		return port.ValidationResult{}, classify(err, domain.ErrInventoryUnavailable)
	}
	return result, nil
}

// Reserve 一次请求预占所有商品，库存服务保证全部成功或全部不占。
func (a *InventoryHTTPAdapter) Reserve(ctx context.Context, orderID string, items []domain.Item) error {
	err := a.client.PostJSON(ctx, InventoryServiceName, "/inventory/reserve", inventoryRequest{OrderID: orderID, Items: toInventoryItems(items)}, nil)
	if err != nil {
		return classify(err, domain.ErrInventoryUnavailable)
	}
	return nil
}

// Release 实现了释放库存的补偿逻辑，对同一个订单重复调用是安全的。
func (a *InventoryHTTPAdapter) Release(ctx context.Context, orderID string) error {
	err := a.client.PostJSON(ctx, InventoryServiceName, "/inventory/release", inventoryRequest{OrderID: orderID}, nil)
	if err != nil {
		return classify(err, domain.ErrInventoryUnavailable)
	}
	return nil
}

type inventoryListResponse struct {
	Products []port.CatalogProduct `json:"products"`
	Total    int                   `json:"total"`
}

// Products 读取库存服务的完整商品目录。
func (a *InventoryHTTPAdapter) Products(ctx context.Context) ([]port.CatalogProduct, error) {
	var resp inventoryListResponse
	if err := a.client.GetJSON(ctx, InventoryServiceName, "/inventory", &resp); err != nil {
		return nil, classify(err, domain.ErrInventoryUnavailable)
	}
	return resp.Products, nil
}
