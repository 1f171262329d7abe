package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"checkout/internal/pkg/bootstrap"
	"checkout/internal/pkg/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAppCtx(seed bool) bootstrap.AppCtx {
	cfg := bootstrap.DefaultConfig()
	cfg.App.Inventory.Seed = seed
	return bootstrap.AppCtx{
		Ctx:        context.Background(),
		Mux:        http.NewServeMux(),
		Config:     cfg,
		Infra:      bootstrap.NewInfra(bootstrap.InfraConfig{}),
		Registry:   prometheus.NewRegistry(),
		OnShutdown: func(string, func(context.Context) error) {},
	}
}

func TestRegisterSeedsCatalogAndRoutes(t *testing.T) {
	appCtx := newAppCtx(true)
	svc, err := Register(appCtx, observability.NewTelemetry("inventory-test", appCtx.Registry))
	require.NoError(t, err)
	require.NotNil(t, svc)

	rec := httptest.NewRecorder()
	appCtx.Mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Total)
}

func TestRegisterWithoutSeed(t *testing.T) {
	appCtx := newAppCtx(false)
	svc, err := Register(appCtx, observability.NewTelemetry("inventory-test", appCtx.Registry))
	require.NoError(t, err)

	products, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}
