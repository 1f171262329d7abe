// internal/service/inventory/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidItems        = errors.New("invalid items")
	ErrUnknownProduct      = errors.New("unknown product")
	ErrReservationConflict = errors.New("reservation conflict")
)

// ConflictError 说明预占时哪个商品数量不足。
type ConflictError struct {
	ProductID string
	Requested int
	Available int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *ConflictError) Unwrap() error { return ErrReservationConflict }
