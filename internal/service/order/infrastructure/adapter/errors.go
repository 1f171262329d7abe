// internal/service/order/infrastructure/adapter/errors.go
package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"checkout/internal/pkg/httpclient"
	"checkout/internal/service/order/domain"
)

const (
	InventoryServiceName = "inventory-service"
	PaymentServiceName   = "payment-service"
)

// remoteError 是下游服务错误响应的公共部分。
type remoteError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func describe(se *httpclient.StatusError) string {
	var body remoteError
	if json.Unmarshal(se.Body, &body) == nil && body.Error != "" {
		if body.Details != "" {
			return body.Error + ": " + body.Details
		}
		return body.Error
	}
	return se.Error()
}

// classify 把下游调用失败映射到订单领域的错误分类。
// 4xx 是请求本身的问题，不会重试；网络错误、超时和 5xx 都视为服务不可用。
func classify(err error, unavailable error) error {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusConflict:
			return fmt.Errorf("%w: %s", domain.ErrReservationConflict, describe(se))
		case se.StatusCode >= 400 && se.StatusCode < 500:
			return fmt.Errorf("%w: %s", domain.ErrValidation, describe(se))
		}
	}
	return fmt.Errorf("%w: %w", unavailable, err)
}
