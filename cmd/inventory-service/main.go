// cmd/inventory-service/main.go
package main

import (
	"checkout/internal/pkg/bootstrap"
	"checkout/internal/pkg/logger"
	"checkout/internal/pkg/observability"
	"checkout/internal/service/inventory"
)

const serviceName = "inventory-service"

func main() {
	cfg, err := bootstrap.Init("")
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Inventory.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) error {
			_, err := inventory.Register(appCtx, observability.NewTelemetry(serviceName, appCtx.Registry))
			return err
		},
	})
}
