// internal/pkg/httpclient/correlation.go
package httpclient

import (
	"context"
	"net/http"
)

const (
	HeaderRequestID  = "x-request-id"
	HeaderUserID     = "x-user-id"
	HeaderOrderID    = "x-order-id"
	HeaderUserPlan   = "x-user-plan"
	HeaderUserRegion = "x-user-region"
)

// Correlation 是在服务间透传的请求标识。
type Correlation struct {
	RequestID string
	UserID    string
	OrderID   string
	Plan      string
	Region    string
}

type correlationKey struct{}

func WithCorrelation(ctx context.Context, c Correlation) context.Context {
	return context.WithValue(ctx, correlationKey{}, c)
}

func CorrelationFrom(ctx context.Context) Correlation {
	c, _ := ctx.Value(correlationKey{}).(Correlation)
	return c
}

// WithOrderID 在已有的 Correlation 上补充订单号。
func WithOrderID(ctx context.Context, orderID string) context.Context {
	c := CorrelationFrom(ctx)
	c.OrderID = orderID
	return WithCorrelation(ctx, c)
}

// InjectCorrelation 把 ctx 中的标识写入出站请求头。
func InjectCorrelation(ctx context.Context, h http.Header) {
	c := CorrelationFrom(ctx)
	if c.RequestID != "" {
		h.Set(HeaderRequestID, c.RequestID)
	}
	if c.UserID != "" {
		h.Set(HeaderUserID, c.UserID)
	}
	if c.OrderID != "" {
		h.Set(HeaderOrderID, c.OrderID)
	}
}

// ExtractCorrelation 从入站请求头读取标识。
func ExtractCorrelation(h http.Header) Correlation {
	return Correlation{
		RequestID: h.Get(HeaderRequestID),
		UserID:    h.Get(HeaderUserID),
		OrderID:   h.Get(HeaderOrderID),
		Plan:      h.Get(HeaderUserPlan),
		Region:    h.Get(HeaderUserRegion),
	}
}
