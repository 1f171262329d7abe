package interfaces

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"checkout/internal/pkg/keylock"
	"checkout/internal/pkg/kvstore"
	"checkout/internal/pkg/observability"
	"checkout/internal/service/payment/application"
	"checkout/internal/service/payment/domain"
	"checkout/internal/service/payment/infrastructure"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMux(outcome domain.Outcome) *http.ServeMux {
	a := application.NewAuthorizer(
		kvstore.NewMemory[domain.Payment](),
		kvstore.NewMemory[string](),
		keylock.NewMutex(),
		infrastructure.FixedFault{Outcome: outcome},
		observability.NewTelemetry("payment-test", prometheus.NewRegistry()),
	)
	mux := http.NewServeMux()
	NewPaymentHandler(a).RegisterRoutes(mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

const processBody = `{"orderId":"order-1","amount":1299,"paymentMethod":"credit_card","userId":"user-1"}`

func TestProcessAuthorized(t *testing.T) {
	mux := newMux(domain.Outcome{})

	rec := do(mux, http.MethodPost, "/payments/process", processBody)
	require.Equal(t, http.StatusOK, rec.Code)
	var first ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, domain.StatusAuthorized, first.Status)

	rec = do(mux, http.MethodPost, "/payments/process", processBody)
	var second ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, first.PaymentID, second.PaymentID)

	rec = do(mux, http.MethodGet, "/payments/"+first.PaymentID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p domain.Payment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "order-1", p.OrderID)
}

func TestProcessDeclinedReturns402(t *testing.T) {
	mux := newMux(domain.Outcome{Decline: true, Reason: "Insufficient funds or card declined"})

	rec := do(mux, http.MethodPost, "/payments/process", processBody)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusDeclined, resp.Status)
	assert.Equal(t, "Payment declined", resp.Error)
	assert.NotEmpty(t, resp.PaymentID)
}

func TestProcessInvalidReturns400(t *testing.T) {
	rec := do(newMux(domain.Outcome{}), http.MethodPost, "/payments/process", `{"orderId":"order-1","amount":0,"paymentMethod":"credit_card"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefundByPaymentID(t *testing.T) {
	mux := newMux(domain.Outcome{})
	rec := do(mux, http.MethodPost, "/payments/process", processBody)
	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	for i := 0; i < 2; i++ {
		rec = do(mux, http.MethodPost, "/payments/"+resp.PaymentID+"/refund", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "refunded", body["status"])
	}
}

func TestRefundByOrderIDInBody(t *testing.T) {
	mux := newMux(domain.Outcome{})
	do(mux, http.MethodPost, "/payments/process", processBody)

	rec := do(mux, http.MethodPost, "/payments/unknown/refund", `{"orderId":"order-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownPaymentReturns404(t *testing.T) {
	mux := newMux(domain.Outcome{})
	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodGet, "/payments/pay_missing", "").Code)
	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodPost, "/payments/pay_missing/refund", "").Code)
}

func TestRefundByOrderPath(t *testing.T) {
	mux := newMux(domain.Outcome{})
	do(mux, http.MethodPost, "/payments/process", processBody)

	rec := do(mux, http.MethodPost, "/payments/orders/order-1/refund", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "refunded", body["status"])

	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodPost, "/payments/orders/order-missing/refund", "").Code)
}
