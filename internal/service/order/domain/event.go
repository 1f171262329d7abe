// internal/service/order/domain/event.go
package domain

import "time"

const (
	EventOrderConfirmed          = "order.confirmed"
	EventOrderFailed             = "order.failed"
	EventOrderCompensationFailed = "order.compensation_failed"
)

// OrderOutcome 是订单进入终态后发布的事件。
type OrderOutcome struct {
	EventType   string    `json:"eventType"`
	OrderID     string    `json:"orderId"`
	UserID      string    `json:"userId"`
	Status      Status    `json:"status"`
	PaymentID   string    `json:"paymentId,omitempty"`
	TotalAmount float64   `json:"totalAmount"`
	ErrorType   string    `json:"errorType,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// NewOrderOutcome 根据订单的终态构造事件。
func NewOrderOutcome(o *Order, errorType string) OrderOutcome {
	eventType := EventOrderFailed
	switch o.Status {
	case StatusConfirmed:
		eventType = EventOrderConfirmed
	case StatusCompensatingFailed:
		eventType = EventOrderCompensationFailed
	}
	return OrderOutcome{
		EventType:   eventType,
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		PaymentID:   o.PaymentID,
		TotalAmount: o.TotalAmount,
		ErrorType:   errorType,
		Reason:      o.FailureReason,
		OccurredAt:  time.Now().UTC(),
	}
}
