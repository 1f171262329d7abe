package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestPostJSONPropagatesHeaders(t *testing.T) {
	var got http.Header
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"reserved"}`))
	}))
	defer srv.Close()

	c := NewClient(noop.NewTracerProvider().Tracer("test"), StaticResolver{"inventory-service": srv.URL + "/"})
	ctx := WithCorrelation(context.Background(), Correlation{RequestID: "req-1", UserID: "user-1"})
	ctx = WithOrderID(ctx, "order-1")

	var out struct {
		Status string `json:"status"`
	}
	err := c.PostJSON(ctx, "inventory-service", "/inventory/reserve", map[string]string{"orderId": "order-1"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "reserved", out.Status)
	assert.Equal(t, "req-1", got.Get(HeaderRequestID))
	assert.Equal(t, "user-1", got.Get(HeaderUserID))
	assert.Equal(t, "order-1", got.Get(HeaderOrderID))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "order-1", body["orderId"])
}

func TestNon2xxReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"conflict"}`))
	}))
	defer srv.Close()

	c := NewClient(noop.NewTracerProvider().Tracer("test"), StaticResolver{"inventory-service": srv.URL})
	err := c.PostJSON(context.Background(), "inventory-service", "/inventory/reserve", nil, nil)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusConflict, statusErr.StatusCode)
	assert.JSONEq(t, `{"error":"conflict"}`, string(statusErr.Body))
}

func TestUnknownServiceFailsResolve(t *testing.T) {
	c := NewClient(noop.NewTracerProvider().Tracer("test"), StaticResolver{})
	err := c.GetJSON(context.Background(), "payment-service", "/payments/p-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment-service")
}
