// internal/service/payment/domain/payment.go
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status 是支付记录的状态。
type Status string

const (
	StatusAuthorized Status = "authorized"
	StatusDeclined   Status = "declined"
	StatusRefunded   Status = "refunded"
)

// Payment 以 OrderID 为唯一键，每个订单最多一条有效的支付结果。
type Payment struct {
	ID            string     `json:"paymentId"`
	OrderID       string     `json:"orderId"`
	UserID        string     `json:"userId"`
	Amount        float64    `json:"amount"`
	Method        string     `json:"paymentMethod"`
	Status        Status     `json:"status"`
	DeclineReason string     `json:"declineReason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	RefundedAt    *time.Time `json:"refundedAt,omitempty"`
}

// AuthorizeRequest 是一次授权请求。
type AuthorizeRequest struct {
	OrderID string  `json:"orderId"`
	Amount  float64 `json:"amount"`
	Method  string  `json:"paymentMethod"`
	UserID  string  `json:"userId"`
}

func (r AuthorizeRequest) Validate() error {
	switch {
	case r.OrderID == "":
		return fmt.Errorf("%w: orderId is required", ErrInvalidRequest)
	case r.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	case r.Method == "":
		return fmt.Errorf("%w: paymentMethod is required", ErrInvalidRequest)
	}
	return nil
}

// Outcome 是故障注入策略对首次授权的裁决。
type Outcome struct {
	Latency time.Duration
	Decline bool
	Reason  string
}

// FaultStrategy 决定首次授权的延迟和是否拒绝。只会在某个订单的第一次授权时被调用。
type FaultStrategy interface {
	Decide(ctx context.Context, req AuthorizeRequest) (Outcome, error)
}

var (
	ErrInvalidRequest  = errors.New("invalid payment request")
	ErrPaymentNotFound = errors.New("payment not found")
)
