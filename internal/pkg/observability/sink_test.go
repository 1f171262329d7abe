package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAmountRange(t *testing.T) {
	assert.Equal(t, "small", AmountRange(49.99))
	assert.Equal(t, "medium", AmountRange(50))
	assert.Equal(t, "medium", AmountRange(199.99))
	assert.Equal(t, "large", AmountRange(200))
	assert.Equal(t, "large", AmountRange(1299))
}

func TestProductCategory(t *testing.T) {
	assert.Equal(t, "laptop", ProductCategory("laptop-001"))
	assert.Equal(t, "headphones", ProductCategory("headphones-001"))
	assert.Equal(t, "gadget", ProductCategory("gadget"))
}

func TestTelemetryRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := NewTelemetry("order-service", reg)

	tel.OrderFinished("confirmed", "credit_card", 120*time.Millisecond)
	tel.OrderFinished("failed", "credit_card", 30*time.Millisecond)
	tel.PaymentProcessed("authorized", "credit_card", 1299)
	tel.InventoryLevel("laptop-001", 9)
	tel.Compensation("release_inventory", "succeeded")
	tel.Error("PaymentDeclinedError")
	tel.SessionOpened()

	assert.Equal(t, 1.0, testutil.ToFloat64(tel.ordersTotal.WithLabelValues("confirmed", "credit_card")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.paymentsTotal.WithLabelValues("authorized", "credit_card", "large")))
	assert.Equal(t, 9.0, testutil.ToFloat64(tel.inventoryAvailable.WithLabelValues("laptop-001", "laptop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.compensationsTotal.WithLabelValues("release_inventory", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.errorsTotal.WithLabelValues("PaymentDeclinedError", "order-service")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.activeSessions))
	assert.Equal(t, 2, testutil.CollectAndCount(tel.checkoutDuration))
}
