// cmd/order-service/main.go
package main

import (
	"context"
	"fmt"

	"checkout/internal/pkg/bootstrap"
	"checkout/internal/pkg/httpclient"
	"checkout/internal/pkg/logger"
	"checkout/internal/pkg/mq"
	"checkout/internal/pkg/observability"
	"checkout/internal/pkg/retry"
	"checkout/internal/service/inventory"
	"checkout/internal/service/order/application"
	"checkout/internal/service/order/application/saga"
	"checkout/internal/service/order/domain"
	"checkout/internal/service/order/domain/port"
	"checkout/internal/service/order/infrastructure"
	"checkout/internal/service/order/infrastructure/adapter"
	"checkout/internal/service/order/interfaces"
	"checkout/internal/service/payment"

	"go.opentelemetry.io/otel"
)

const serviceName = "order-service"

// main 是应用的"组装根"：创建并组装所有依赖项，然后启动服务。
func main() {
	cfg, err := bootstrap.Init("")
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             cfg.App.Order.Port,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(appCtx bootstrap.AppCtx) error {
	cfg := appCtx.Config.App.Order
	sink := observability.NewTelemetry(serviceName, appCtx.Registry)

	collaborators, err := buildCollaborators(appCtx, sink)
	if err != nil {
		return err
	}

	repo, err := buildRepository(appCtx)
	if err != nil {
		return err
	}
	sessions, err := bootstrap.NewStore[domain.Session](appCtx.Infra, "order:sessions")
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}

	hub := infrastructure.NewHub()
	go hub.Run(appCtx.Ctx)

	catalog := adapter.NewCatalogCache(collaborators.catalog)
	go catalog.Run(appCtx.Ctx, cfg.CatalogRefresh)

	policy := saga.StepPolicy{
		InventoryTimeout: cfg.InventoryTimeout,
		PaymentTimeout:   cfg.PaymentTimeout,
		Retry: retry.Policy{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     retry.DefaultPolicy.MaxInterval,
		},
	}

	svc := application.NewOrderApplicationService(application.Dependencies{
		Repo:      repo,
		Sessions:  sessions,
		Inventory: collaborators.inventory,
		Payment:   collaborators.payment,
		Notifier:  buildNotifier(appCtx, hub),
		Reporter:  buildReporter(appCtx),
		Catalog:   catalog,
		Products:  collaborators.catalog,
		Sink:      sink,
	}, policy, cfg.ProcessingTimeout)

	interfaces.NewOrderHandler(svc).RegisterRoutes(appCtx.Mux)
	interfaces.NewPushHandler(hub).RegisterRoutes(appCtx.Mux)
	return nil
}

type collaborators struct {
	inventory port.InventoryService
	payment   port.PaymentService
	catalog   port.Catalog
}

// buildCollaborators 内嵌模式下库存和支付与订单同进程运行并共享 mux，
// 否则通过 HTTP 调用，地址优先从 nacos 发现。
func buildCollaborators(appCtx bootstrap.AppCtx, sink observability.Sink) (collaborators, error) {
	if appCtx.Config.App.Order.Embedded {
		inv, err := inventory.Register(appCtx, sink)
		if err != nil {
			return collaborators{}, fmt.Errorf("embedded inventory: %w", err)
		}
		authorizer, err := payment.Register(appCtx, sink)
		if err != nil {
			return collaborators{}, fmt.Errorf("embedded payment: %w", err)
		}
		local := adapter.NewInventoryLocalAdapter(inv)
		logger.L().Info().Msg("inventory and payment running embedded")
		return collaborators{
			inventory: local,
			payment:   adapter.NewPaymentLocalAdapter(authorizer),
			catalog:   local,
		}, nil
	}

	var resolver httpclient.Resolver = httpclient.StaticResolver{
		adapter.InventoryServiceName: appCtx.Config.App.Order.InventoryURL,
		adapter.PaymentServiceName:   appCtx.Config.App.Order.PaymentURL,
	}
	if appCtx.Nacos != nil {
		resolver = appCtx.Nacos
	}
	client := httpclient.NewClient(otel.Tracer(serviceName), resolver)
	inv := adapter.NewInventoryHTTPAdapter(client)
	return collaborators{
		inventory: inv,
		payment:   adapter.NewPaymentHTTPAdapter(client),
		catalog:   inv,
	}, nil
}

// buildRepository 配置了 mysql 时使用 gorm 仓储，否则使用 kv 仓储。
func buildRepository(appCtx bootstrap.AppCtx) (domain.OrderRepository, error) {
	db, err := appCtx.Infra.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	if db != nil {
		repo := infrastructure.NewGormOrderRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrate orders: %w", err)
		}
		return repo, nil
	}
	store, err := bootstrap.NewStore[domain.Order](appCtx.Infra, "order:orders")
	if err != nil {
		return nil, fmt.Errorf("order store: %w", err)
	}
	return infrastructure.NewKVOrderRepository(store), nil
}

// buildNotifier 配置了 kafka 时结果事件先进 topic，再由消费组推送给 websocket 客户端；
// 否则直接推送。
func buildNotifier(appCtx bootstrap.AppCtx, hub *infrastructure.Hub) port.Notifier {
	kafkaCfg := appCtx.Config.Infra.Kafka
	writer := appCtx.Infra.KafkaWriter(kafkaCfg.NotificationTopic)
	if writer == nil {
		return hub
	}

	reader := mq.NewKafkaReader(kafkaCfg.Brokers, kafkaCfg.NotificationTopic, kafkaCfg.ConsumerGroup)
	consumer := infrastructure.NewOutcomeConsumerAdapter(reader, hub)
	consumer.Start(appCtx.Ctx)
	appCtx.OnShutdown("outcome-consumer", func(context.Context) error {
		return consumer.Stop()
	})
	return adapter.NewNotificationKafkaAdapter(writer)
}

func buildReporter(appCtx bootstrap.AppCtx) port.ReconciliationReporter {
	writer := appCtx.Infra.KafkaWriter(appCtx.Config.Infra.Kafka.ReconciliationTopic)
	if writer == nil {
		return nil
	}
	return adapter.NewReconciliationKafkaAdapter(writer)
}
