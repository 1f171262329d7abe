// internal/service/inventory/domain/product.go
package domain

import "time"

// Product 是一个商品的库存记录。不变量: 0 <= Reserved <= Stock。
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Reserved int     `json:"reserved"`
}

// Available 返回可供新订单预占的数量。
func (p Product) Available() int {
	return p.Stock - p.Reserved
}

// Item 是一次校验或预占请求中的一行。
type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// ItemValidation 是单个商品的校验结果。
type ItemValidation struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Valid     bool   `json:"valid"`
}

type ValidationResult struct {
	Valid   bool             `json:"valid"`
	Results []ItemValidation `json:"results"`
}

// Reservation 是预留台账中的一条记录，精确记录订单占用了哪些商品和数量。
type Reservation struct {
	OrderID    string    `json:"orderId"`
	Items      []Item    `json:"items"`
	ReservedAt time.Time `json:"reservedAt"`
}

// ReservationResult 是 Reserve 成功时的返回值。
type ReservationResult struct {
	OrderID      string `json:"orderId"`
	Reservations []Item `json:"reservations"`
	Status       string `json:"status"`
}

const ReservationStatusReserved = "reserved"

// SeedCatalog 返回系统初始化时的商品目录。
func SeedCatalog() []Product {
	return []Product{
		{ID: "laptop-001", Name: "MacBook Pro", Price: 1299, Stock: 10},
		{ID: "phone-001", Name: "iPhone 14", Price: 999, Stock: 25},
		{ID: "tablet-001", Name: "iPad Air", Price: 599, Stock: 15},
		{ID: "watch-001", Name: "Apple Watch", Price: 399, Stock: 30},
		{ID: "headphones-001", Name: "AirPods Pro", Price: 249, Stock: 50},
	}
}
