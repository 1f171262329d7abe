// internal/service/order/infrastructure/adapter/payment_http_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"checkout/internal/pkg/httpclient"
	"checkout/internal/service/order/domain"
	"checkout/internal/service/order/domain/port"
)

// PaymentHTTPAdapter 实现了 port.PaymentService 接口。
type PaymentHTTPAdapter struct {
	client *httpclient.Client
}

func NewPaymentHTTPAdapter(client *httpclient.Client) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{client: client}
}

type processRequest struct {
	OrderID       string  `json:"orderId"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"paymentMethod"`
	UserID        string  `json:"userId"`
}

type processResponse struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
	Error     string `json:"error"`
	Details   string `json:"details"`
}

// Authorize 调用支付服务。402 表示拒绝，是一个正常的结果而不是错误。
func (a *PaymentHTTPAdapter) Authorize(ctx context.Context, req port.AuthorizeRequest) (port.Authorization, error) {
	body := processRequest{OrderID: req.OrderID, Amount: req.Amount, PaymentMethod: req.Method, UserID: req.UserID}
	var resp processResponse
	err := a.client.PostJSON(ctx, PaymentServiceName, "/payments/process", body, &resp)
	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusPaymentRequired {
			if jsonErr := json.Unmarshal(se.Body, &resp); jsonErr == nil {
				return port.Authorization{PaymentID: resp.PaymentID, Status: port.PaymentDeclined, Reason: reasonOf(resp)}, nil
			}
			return port.Authorization{Status: port.PaymentDeclined, Reason: "Payment declined"}, nil
		}
		return port.Authorization{}, classify(err, domain.ErrPaymentUnavailable)
	}
	return port.Authorization{PaymentID: resp.PaymentID, Status: resp.Status, Reason: reasonOf(resp)}, nil
}

func reasonOf(resp processResponse) string {
	if resp.Details != "" {
		return resp.Details
	}
	return resp.Error
}

// Refund 按 orderId 退款，支付不存在时是空操作。
func (a *PaymentHTTPAdapter) Refund(ctx context.Context, orderID string) error {
	err := a.client.PostJSON(ctx, PaymentServiceName, "/payments/orders/"+url.PathEscape(orderID)+"/refund", nil, nil)
	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil
		}
		return classify(err, domain.ErrPaymentUnavailable)
	}
	return nil
}
