// internal/service/order/domain/port/catalog.go
package port

import "context"

// CatalogProduct 是商品目录中的一项。
type CatalogProduct struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Stock     int     `json:"stock"`
	Reserved  int     `json:"reserved"`
	Available int     `json:"available"`
}

// Catalog 是商品目录的只读端口。
type Catalog interface {
	Products(ctx context.Context) ([]CatalogProduct, error)
}

// ReloadableCatalog 是带缓存的目录：遇到未知商品时可以要求立即重新加载一次。
type ReloadableCatalog interface {
	Catalog
	Reload(ctx context.Context) error
}
