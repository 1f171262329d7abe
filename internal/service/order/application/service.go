// internal/service/order/application/service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout/internal/pkg/httpclient"
	"checkout/internal/pkg/kvstore"
	"checkout/internal/pkg/observability"
	"checkout/internal/service/order/application/saga"
	"checkout/internal/service/order/domain"
	"checkout/internal/service/order/domain/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Dependencies 是编排器需要的全部协作者。Notifier、Reporter 和 Catalog 可以为 nil。
type Dependencies struct {
	Repo      domain.OrderRepository
	Sessions  kvstore.Store[domain.Session]
	Inventory port.InventoryService
	Payment   port.PaymentService
	Notifier  port.Notifier
	Reporter  port.ReconciliationReporter
	// Catalog 用于下单前的商品校验和单价补齐，一般是带缓存的实现。
	Catalog port.Catalog
	// Products 是 GET /products 使用的实时目录。
	Products port.Catalog
	Sink     observability.Sink
}

// OrderApplicationService 只关注业务流程编排，不持有任何锁，每次下单是一个独立的 saga。
type OrderApplicationService struct {
	deps              Dependencies
	policy            saga.StepPolicy
	processingTimeout time.Duration
	chain             saga.Handler
}

func NewOrderApplicationService(deps Dependencies, policy saga.StepPolicy, processingTimeout time.Duration) *OrderApplicationService {
	if processingTimeout <= 0 {
		processingTimeout = 30 * time.Second
	}
	return &OrderApplicationService{
		deps:              deps,
		policy:            policy,
		processingTimeout: processingTimeout,
		chain:             saga.BuildChain(),
	}
}

// PlaceOrder 执行一次完整的结账 saga。返回的 OrderResult 在失败时同样有效。
// saga 使用脱离调用方取消的 ctx：客户端断开不会让订单停在中间状态。
func (s *OrderApplicationService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*OrderResult, error) {
	start := time.Now()
	orderID := uuid.NewString()
	ctx = httpclient.WithOrderID(ctx, orderID)

	ctx, span := s.deps.Sink.Start(ctx, "order.PlaceOrder",
		attribute.String("order.id", orderID),
		attribute.String("user.id", req.UserID),
		attribute.String("order.payment_method", req.PaymentMethod),
	)
	defer span.End()
	log := s.deps.Sink.Logger(ctx)

	result := &OrderResult{OrderID: orderID, Status: domain.StatusFailed}
	finish := func(err error) (*OrderResult, error) {
		result.ProcessingTime = time.Since(start)
		s.deps.Sink.OrderFinished(string(result.Status), req.PaymentMethod, result.ProcessingTime)
		if err != nil {
			kind := domain.KindName(err)
			s.deps.Sink.Error(kind)
			span.RecordError(err)
			span.SetStatus(codes.Error, kind)
			log.Error().Err(err).Str("order_id", orderID).Str("error_type", kind).
				Str("status", string(result.Status)).Dur("processing_time", result.ProcessingTime).
				Msg("order placement failed")
			return result, err
		}
		log.Info().Str("order_id", orderID).Str("payment_id", result.PaymentID).
			Float64("total_amount", result.TotalAmount).Dur("processing_time", result.ProcessingTime).
			Msg("order placed successfully")
		return result, nil
	}

	items, err := s.prepareItems(ctx, req.Items)
	if err != nil {
		return finish(domain.NewOrderError(domain.ErrValidation, orderID, err.Error(), err))
	}
	if req.PaymentMethod == "" {
		return finish(domain.NewOrderError(domain.ErrValidation, orderID, "paymentMethod is required", nil))
	}
	order, err := domain.NewOrder(orderID, req.UserID, items, req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		return finish(domain.NewOrderError(domain.ErrValidation, orderID, err.Error(), err))
	}
	result.TotalAmount = order.TotalAmount
	span.SetAttributes(attribute.Float64("order.total_amount", order.TotalAmount))

	sagaCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.processingTimeout)
	defer cancel()

	if err := s.deps.Repo.Save(sagaCtx, order); err != nil {
		return finish(domain.NewOrderError(domain.ErrInternal, orderID, "failed to save order", err))
	}
	log.Info().Str("order_id", orderID).Int("item_count", len(items)).Float64("total_amount", order.TotalAmount).Msg("order created, starting checkout saga")

	orderCtx := &saga.OrderContext{
		Ctx:       sagaCtx,
		Order:     order,
		Sink:      s.deps.Sink,
		Repo:      s.deps.Repo,
		Inventory: s.deps.Inventory,
		Payment:   s.deps.Payment,
		Notifier:  s.deps.Notifier,
		Reporter:  s.deps.Reporter,
		Policy:    s.policy,
	}

	if err := s.chain.Handle(orderCtx); err != nil {
		final := orderCtx.Abort(sagaCtx, err)
		result.Status = orderCtx.Order.Status
		return finish(final)
	}

	result.Status = orderCtx.Order.Status
	result.PaymentID = orderCtx.Order.PaymentID
	return finish(nil)
}

// prepareItems 在调用任何协作者之前检查请求，并用商品目录补齐缺失的单价。
// 目录不可用时跳过未知商品检查，由库存校验兜底。目录里找不到的商品会先触发一次重新加载再判定。
func (s *OrderApplicationService) prepareItems(ctx context.Context, reqItems []ItemRequest) ([]domain.Item, error) {
	if len(reqItems) == 0 {
		return nil, errors.New("order must contain at least one item")
	}

	items := make([]domain.Item, 0, len(reqItems))
	for i, it := range reqItems {
		if it.ProductID == "" {
			return nil, fmt.Errorf("item %d: productId is required", i)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("item %d (%s): quantity must be positive", i, it.ProductID)
		}
		price := it.UnitPrice
		if price == 0 {
			price = it.Price
		}
		if price < 0 {
			return nil, fmt.Errorf("item %d (%s): unitPrice must not be negative", i, it.ProductID)
		}
		items = append(items, domain.Item{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: price})
	}

	known := s.catalogIndex(ctx)
	if known == nil {
		return items, nil
	}
	if missing := missingProducts(known, items); len(missing) > 0 {
		if reloader, ok := s.deps.Catalog.(port.ReloadableCatalog); ok {
			if err := reloader.Reload(ctx); err != nil {
				s.deps.Sink.Logger(ctx).Warn().Err(err).Strs("product_ids", missing).Msg("catalog reload failed")
			} else if fresh := s.catalogIndex(ctx); fresh != nil {
				known = fresh
			}
		}
	}

	for i := range items {
		p, ok := known[items[i].ProductID]
		if !ok {
			return nil, fmt.Errorf("unknown product %s", items[i].ProductID)
		}
		if items[i].UnitPrice == 0 {
			items[i].UnitPrice = p.Price
		}
	}
	return items, nil
}

// catalogIndex 按商品 id 索引目录，目录不可用时返回 nil。
func (s *OrderApplicationService) catalogIndex(ctx context.Context) map[string]port.CatalogProduct {
	if s.deps.Catalog == nil {
		return nil
	}
	products, err := s.deps.Catalog.Products(ctx)
	if err != nil {
		s.deps.Sink.Logger(ctx).Warn().Err(err).Msg("catalog unavailable, skipping product precheck")
		return nil
	}
	known := make(map[string]port.CatalogProduct, len(products))
	for _, p := range products {
		known[p.ID] = p
	}
	return known
}

func missingProducts(known map[string]port.CatalogProduct, items []domain.Item) []string {
	var missing []string
	for _, it := range items {
		if _, ok := known[it.ProductID]; !ok {
			missing = append(missing, it.ProductID)
		}
	}
	return missing
}

// GetOrder 按 orderId 查询订单。
func (s *OrderApplicationService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.deps.Repo.FindByID(ctx, orderID)
}

// ListUserOrders 返回用户的全部订单。
func (s *OrderApplicationService) ListUserOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.deps.Repo.FindByUser(ctx, userID)
}

// ListByStatus 供运维查询，例如列出 compensating-failed 的订单。
func (s *OrderApplicationService) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error) {
	return s.deps.Repo.FindByStatus(ctx, status)
}

// ListProducts 实时读取库存服务的商品目录。
func (s *OrderApplicationService) ListProducts(ctx context.Context) ([]port.CatalogProduct, error) {
	if s.deps.Products == nil {
		return nil, domain.ErrInventoryUnavailable
	}
	return s.deps.Products.Products(ctx)
}
