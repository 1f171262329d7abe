package bootstrap

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"checkout/internal/pkg/httpclient"
	"checkout/internal/pkg/kvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitReadsYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  order:
    port: 4000
    inventoryTimeout: 2s
  payment:
    faults:
      failureRate: 0.5
      declineWhen: "amount > 5000.0"
infra:
  redis:
    addrs: "redis:6379"
`), 0o600))

	t.Setenv("KAFKA_BROKERS", "kafka:9092")
	t.Setenv("PAYMENT_FAILURE_RATE", "0")

	cfg, err := Init(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.App.Order.Port)
	assert.Equal(t, 2*time.Second, cfg.App.Order.InventoryTimeout)
	assert.Equal(t, 10*time.Second, cfg.App.Order.PaymentTimeout)
	assert.Equal(t, 0.0, cfg.App.Payment.Faults.FailureRate)
	assert.Equal(t, "amount > 5000.0", cfg.App.Payment.Faults.DeclineWhen)
	assert.Equal(t, "redis:6379", cfg.Infra.Redis.Addrs)
	assert.Equal(t, "kafka:9092", cfg.Infra.Kafka.Brokers)
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestInitMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Init(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3002, cfg.App.Inventory.Port)
	assert.Equal(t, 3001, cfg.App.Payment.Port)
	assert.Equal(t, 30*time.Second, cfg.App.Order.ProcessingTimeout)
}

func TestInitRejectsBadFailureRate(t *testing.T) {
	t.Setenv("PAYMENT_FAILURE_RATE", "1.5")
	_, err := Init(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(MySQLConfig{Addr: "db:3306", User: "root", Password: "secret", Database: "orders"})
	assert.Contains(t, dsn, "root:secret@tcp(db:3306)/orders")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestInfraFallsBackToMemory(t *testing.T) {
	infra := NewInfra(InfraConfig{})

	store, err := NewStore[string](infra, "sessions")
	require.NoError(t, err)
	assert.IsType(t, &kvstore.Memory[string]{}, store)

	l1, err := infra.Locker()
	require.NoError(t, err)
	l2, err := infra.Locker()
	require.NoError(t, err)
	assert.Same(t, l1, l2)

	assert.Nil(t, infra.KafkaWriter("order-notifications"))
	db, err := infra.DB()
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestMiddlewareSetsCorrelation(t *testing.T) {
	var seen httpclient.Correlation
	h := Middleware("test-service", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = httpclient.CorrelationFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
	req.Header.Set("x-user-plan", "premium")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, seen.RequestID)
	assert.Equal(t, "anonymous", seen.UserID)
	assert.Equal(t, "premium", seen.Plan)
	assert.Equal(t, seen.RequestID, rec.Header().Get("x-request-id"))
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	var seen httpclient.Correlation
	h := Middleware("test-service", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = httpclient.CorrelationFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-request-id", "req-42")
	req.Header.Set("x-user-id", "user-7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-42", seen.RequestID)
	assert.Equal(t, "user-7", seen.UserID)
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler("order-service", time.Now().Add(-time.Minute))(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "order-service", body.Service)
	assert.GreaterOrEqual(t, body.Uptime, 60.0)
}
