// internal/service/order/domain/port/payment.go
package port

import "context"

const (
	PaymentAuthorized = "authorized"
	PaymentDeclined   = "declined"
	PaymentRefunded   = "refunded"
)

type AuthorizeRequest struct {
	OrderID string
	UserID  string
	Amount  float64
	Method  string
}

// Authorization 是支付服务对一次授权的结果。被拒绝不是错误。
type Authorization struct {
	PaymentID string
	Status    string
	Reason    string
}

// PaymentService 是支付服务的出站端口。
// 实现需要把网络错误、超时和 5xx 映射为 domain.ErrPaymentUnavailable。
// Refund 对不存在的支付是空操作。
type PaymentService interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error)
	Refund(ctx context.Context, orderID string) error
}
