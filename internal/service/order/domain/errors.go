// internal/service/order/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation            = errors.New("validation error")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrReservationConflict   = errors.New("reservation conflict")
	ErrPaymentDeclined       = errors.New("payment declined")
	ErrPaymentUnavailable    = errors.New("payment service unavailable")
	ErrInventoryUnavailable  = errors.New("inventory service unavailable")
	ErrCompensationFailed    = errors.New("compensation failed")
	ErrInternal              = errors.New("internal error")

	ErrOrderNotFound     = errors.New("order not found")
	ErrIllegalTransition = errors.New("illegal order status transition")
)

var kindNames = map[error]string{
	ErrValidation:            "ValidationError",
	ErrInsufficientInventory: "InsufficientInventoryError",
	ErrReservationConflict:   "ReservationConflictError",
	ErrPaymentDeclined:       "PaymentDeclinedError",
	ErrPaymentUnavailable:    "PaymentServiceUnavailableError",
	ErrInventoryUnavailable:  "InventoryServiceUnavailableError",
	ErrCompensationFailed:    "CompensationFailedError",
	ErrInternal:              "InternalError",
}

// OrderError 是编排器对外返回的唯一错误类型，Kind 是上面的某个哨兵错误。
type OrderError struct {
	Kind    error
	OrderID string
	Details string
	Err     error
}

func NewOrderError(kind error, orderID, details string, cause error) *OrderError {
	return &OrderError{Kind: kind, OrderID: orderID, Details: details, Err: cause}
}

func (e *OrderError) Error() string {
	if e.Details == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Details)
}

func (e *OrderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindName 返回错误分类的名称，例如 "PaymentDeclinedError"。无法分类时为 "InternalError"。
func KindName(err error) string {
	var oe *OrderError
	if errors.As(err, &oe) {
		if name, ok := kindNames[oe.Kind]; ok {
			return name
		}
	}
	return kindNames[ErrInternal]
}

// KindOf 返回错误的分类哨兵。
func KindOf(err error) error {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return ErrInternal
}
