package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"checkout/internal/pkg/keylock"
	"checkout/internal/pkg/kvstore"
	"checkout/internal/pkg/observability"
	"checkout/internal/service/inventory/application"
	"checkout/internal/service/inventory/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMux(t *testing.T) *http.ServeMux {
	t.Helper()
	svc := application.NewService(
		kvstore.NewMemory[domain.Product](),
		kvstore.NewMemory[domain.Reservation](),
		keylock.NewMutex(),
		observability.NewTelemetry("inventory-test", prometheus.NewRegistry()),
	)
	require.NoError(t, svc.Seed(context.Background(), domain.SeedCatalog()))
	mux := http.NewServeMux()
	NewInventoryHandler(svc).RegisterRoutes(mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestListInventory(t *testing.T) {
	rec := do(newMux(t), http.MethodGet, "/inventory", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Products []map[string]any `json:"products"`
		Total    int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Total)
	assert.Equal(t, "headphones-001", body.Products[0]["id"])
	assert.EqualValues(t, 50, body.Products[0]["available"])
}

func TestValidateEndpoint(t *testing.T) {
	rec := do(newMux(t), http.MethodPost, "/inventory/validate", `{"items":[{"productId":"watch-001","quantity":999}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Valid)
	assert.Equal(t, 30, result.Results[0].Available)
}

func TestReserveConflictReturns409(t *testing.T) {
	rec := do(newMux(t), http.MethodPost, "/inventory/reserve",
		`{"orderId":"o-1","items":[{"productId":"laptop-001","quantity":1},{"productId":"watch-001","quantity":999}]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReserveInvalidReturns400(t *testing.T) {
	rec := do(newMux(t), http.MethodPost, "/inventory/reserve", `{"orderId":"o-1","items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReserveThenReleaseTwice(t *testing.T) {
	mux := newMux(t)

	rec := do(mux, http.MethodPost, "/inventory/reserve", `{"orderId":"o-1","items":[{"productId":"laptop-001","quantity":1}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var reserved domain.ReservationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reserved))
	assert.Equal(t, "reserved", reserved.Status)

	for i := 0; i < 2; i++ {
		rec = do(mux, http.MethodPost, "/inventory/release", `{"orderId":"o-1"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["released"])
		assert.Equal(t, i == 1, body["noop"])
	}
}
