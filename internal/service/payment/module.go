// internal/service/payment/module.go
package payment

import (
	"fmt"
	"time"

	"checkout/internal/pkg/bootstrap"
	"checkout/internal/pkg/observability"
	"checkout/internal/service/payment/application"
	"checkout/internal/service/payment/domain"
	"checkout/internal/service/payment/infrastructure"
	"checkout/internal/service/payment/interfaces"
)

// Register 组装支付服务并把路由挂到 appCtx.Mux 上。
func Register(appCtx bootstrap.AppCtx, sink observability.Sink) (*application.Authorizer, error) {
	ledger, err := bootstrap.NewStore[domain.Payment](appCtx.Infra, "payment:ledger")
	if err != nil {
		return nil, fmt.Errorf("payment ledger: %w", err)
	}
	index, err := bootstrap.NewStore[string](appCtx.Infra, "payment:index")
	if err != nil {
		return nil, fmt.Errorf("payment index: %w", err)
	}
	locker, err := appCtx.Infra.Locker()
	if err != nil {
		return nil, fmt.Errorf("locker: %w", err)
	}
	faults, err := NewFaultStrategy(appCtx.Config.App.Payment.Faults)
	if err != nil {
		return nil, err
	}

	authorizer := application.NewAuthorizer(ledger, index, locker, faults, sink)
	interfaces.NewPaymentHandler(authorizer).RegisterRoutes(appCtx.Mux)
	return authorizer, nil
}

// NewFaultStrategy 按配置构造故障注入策略：随机延迟与失败，外加可选的 CEL 拒付规则。
func NewFaultStrategy(cfg bootstrap.FaultConfig) (domain.FaultStrategy, error) {
	random := infrastructure.NewRandomFault(cfg.MinLatency, cfg.MaxLatency, cfg.FailureRate, uint64(time.Now().UnixNano()))
	if cfg.DeclineWhen == "" {
		return random, nil
	}
	rule, err := infrastructure.NewCELFault(cfg.DeclineWhen)
	if err != nil {
		return nil, fmt.Errorf("payment.faults.declineWhen: %w", err)
	}
	return infrastructure.ComposeFault{random, rule}, nil
}
