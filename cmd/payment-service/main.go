// cmd/payment-service/main.go
package main

import (
	"checkout/internal/pkg/bootstrap"
	"checkout/internal/pkg/logger"
	"checkout/internal/pkg/observability"
	"checkout/internal/service/payment"
)

const serviceName = "payment-service"

func main() {
	cfg, err := bootstrap.Init("")
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Payment.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) error {
			_, err := payment.Register(appCtx, observability.NewTelemetry(serviceName, appCtx.Registry))
			return err
		},
	})
}
