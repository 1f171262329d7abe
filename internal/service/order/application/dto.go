// internal/service/order/application/dto.go
package application

import (
	"encoding/json"
	"time"

	"checkout/internal/service/order/domain"
)

// ItemRequest 是下单请求中的一行。price 是 unitPrice 的别名，缺省时由商品目录补齐。
type ItemRequest struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice,omitempty"`
	Price     float64 `json:"price,omitempty"`
}

// PlaceOrderRequest 是下单用例的输入数据
type PlaceOrderRequest struct {
	UserID          string          `json:"userId"`
	Items           []ItemRequest   `json:"items"`
	ShippingAddress json.RawMessage `json:"shippingAddress,omitempty"`
	PaymentMethod   string          `json:"paymentMethod"`
}

// OrderResult 是下单用例的输出。失败时也会返回，携带 orderId 和最终状态。
type OrderResult struct {
	OrderID        string
	Status         domain.Status
	PaymentID      string
	TotalAmount    float64
	ProcessingTime time.Duration
}

// SessionRequest 是创建会话的输入。
type SessionRequest struct {
	UserID string
	Plan   string
	Region string
}
