// internal/service/inventory/module.go
package inventory

import (
	"fmt"

	"checkout/internal/pkg/bootstrap"
	"checkout/internal/pkg/observability"
	"checkout/internal/service/inventory/application"
	"checkout/internal/service/inventory/domain"
	"checkout/internal/service/inventory/interfaces"
)

// Register 组装库存服务并把路由挂到 appCtx.Mux 上。
// 独立部署和 order-service 内嵌部署都走这里。
func Register(appCtx bootstrap.AppCtx, sink observability.Sink) (*application.Service, error) {
	products, err := bootstrap.NewStore[domain.Product](appCtx.Infra, "inventory:products")
	if err != nil {
		return nil, fmt.Errorf("product store: %w", err)
	}
	reservations, err := bootstrap.NewStore[domain.Reservation](appCtx.Infra, "inventory:reservations")
	if err != nil {
		return nil, fmt.Errorf("reservation store: %w", err)
	}
	locker, err := appCtx.Infra.Locker()
	if err != nil {
		return nil, fmt.Errorf("locker: %w", err)
	}

	svc := application.NewService(products, reservations, locker, sink)
	if appCtx.Config.App.Inventory.Seed {
		if err := svc.Seed(appCtx.Ctx, domain.SeedCatalog()); err != nil {
			return nil, err
		}
	}

	interfaces.NewInventoryHandler(svc).RegisterRoutes(appCtx.Mux)
	return svc, nil
}
