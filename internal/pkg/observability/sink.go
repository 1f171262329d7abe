// internal/pkg/observability/sink.go
package observability

import (
	"context"
	"time"

	"checkout/internal/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Sink 是注入到编排器、库存和支付组件里的唯一观测出口。
type Sink interface {
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
	Logger(ctx context.Context) *zerolog.Logger

	OrderFinished(status, paymentMethod string, elapsed time.Duration)
	PaymentProcessed(status, method string, amount float64)
	InventoryLevel(productID string, available int)
	Compensation(action, result string)
	Error(kind string)
	SessionOpened()
}

// Telemetry 用 otel、zerolog 和 prometheus 实现 Sink。
type Telemetry struct {
	service string
	tracer  trace.Tracer

	ordersTotal        *prometheus.CounterVec
	checkoutDuration   *prometheus.HistogramVec
	paymentsTotal      *prometheus.CounterVec
	inventoryAvailable *prometheus.GaugeVec
	errorsTotal        *prometheus.CounterVec
	compensationsTotal *prometheus.CounterVec
	activeSessions     prometheus.Gauge
}

// NewTelemetry 在 reg 上注册所有指标。reg 为 nil 时使用默认 registry。
func NewTelemetry(service string, reg prometheus.Registerer) *Telemetry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Telemetry{
		service: service,
		tracer:  otel.Tracer(service),
		ordersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Total number of orders processed",
		}, []string{"status", "payment_method"}),
		checkoutDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkout_duration_ms",
			Help:    "Duration of checkout process in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"status"}),
		paymentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Total number of payment attempts",
		}, []string{"status", "method", "amount_range"}),
		inventoryAvailable: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inventory_available",
			Help: "Units available for reservation per product",
		}, []string{"product_id", "product_category"}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors by type",
		}, []string{"type", "service"}),
		compensationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_compensations_total",
			Help: "Saga compensation actions by outcome",
		}, []string{"action", "result"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Number of user sessions opened",
		}),
	}
}

func (t *Telemetry) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (t *Telemetry) Logger(ctx context.Context) *zerolog.Logger {
	return logger.Ctx(ctx)
}

func (t *Telemetry) OrderFinished(status, paymentMethod string, elapsed time.Duration) {
	t.ordersTotal.WithLabelValues(status, paymentMethod).Inc()
	t.checkoutDuration.WithLabelValues(status).Observe(float64(elapsed.Milliseconds()))
}

func (t *Telemetry) PaymentProcessed(status, method string, amount float64) {
	t.paymentsTotal.WithLabelValues(status, method, AmountRange(amount)).Inc()
}

func (t *Telemetry) InventoryLevel(productID string, available int) {
	t.inventoryAvailable.WithLabelValues(productID, ProductCategory(productID)).Set(float64(available))
}

func (t *Telemetry) Compensation(action, result string) {
	t.compensationsTotal.WithLabelValues(action, result).Inc()
}

func (t *Telemetry) Error(kind string) {
	t.errorsTotal.WithLabelValues(kind, t.service).Inc()
}

func (t *Telemetry) SessionOpened() {
	t.activeSessions.Inc()
}

// AmountRange 把金额分成 small / medium / large 三档，用作指标标签。
func AmountRange(amount float64) string {
	switch {
	case amount < 50:
		return "small"
	case amount < 200:
		return "medium"
	default:
		return "large"
	}
}

// ProductCategory 取商品 id 的前缀，例如 laptop-001 -> laptop。
func ProductCategory(productID string) string {
	for i := 0; i < len(productID); i++ {
		if productID[i] == '-' {
			return productID[:i]
		}
	}
	return productID
}
