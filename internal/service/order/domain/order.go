// internal/service/order/domain/order.go
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"
)

// Item 是订单中的一行商品
type Item struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// Order 是订单聚合的根实体，只由编排器修改。
type Order struct {
	ID              string          `json:"orderId"`
	UserID          string          `json:"userId"`
	Items           []Item          `json:"items"`
	ShippingAddress json.RawMessage `json:"shippingAddress,omitempty"`
	PaymentMethod   string          `json:"paymentMethod"`
	TotalAmount     float64         `json:"totalAmount"`
	Status          Status          `json:"status"`
	PaymentID       string          `json:"paymentId,omitempty"`
	FailureReason   string          `json:"failureReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NewOrder 创建一个 pending 状态的订单，并一次性计算总金额。
func NewOrder(id, userID string, items []Item, shippingAddress json.RawMessage, paymentMethod string) (*Order, error) {
	if id == "" || len(items) == 0 {
		return nil, fmt.Errorf("%w: order requires an id and at least one item", ErrValidation)
	}
	now := time.Now().UTC()
	return &Order{
		ID:              id,
		UserID:          userID,
		Items:           slices.Clone(items),
		ShippingAddress: shippingAddress,
		PaymentMethod:   paymentMethod,
		TotalAmount:     Total(items),
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Total 计算 Σ quantity×unitPrice，保留两位小数。
func Total(items []Item) float64 {
	var sum float64
	for _, it := range items {
		sum += float64(it.Quantity) * it.UnitPrice
	}
	return math.Round(sum*100) / 100
}

// TransitionTo 推进订单状态，非法跳转返回 ErrIllegalTransition。
func (o *Order) TransitionTo(next Status) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Confirm 是 saga 的最后一步，之后订单对客户端不可逆。
func (o *Order) Confirm(paymentID string) error {
	if err := o.TransitionTo(StatusConfirmed); err != nil {
		return err
	}
	o.PaymentID = paymentID
	return nil
}

// Fail 记录失败原因并进入 status（failed 或 compensating-failed）。
func (o *Order) Fail(status Status, reason string) error {
	if err := o.TransitionTo(status); err != nil {
		return err
	}
	o.FailureReason = reason
	return nil
}

// Clone 返回一个深拷贝，用于在持久化成功前不修改原对象。
func (o *Order) Clone() *Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	c.ShippingAddress = slices.Clone(o.ShippingAddress)
	return &c
}
