package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"checkout/internal/pkg/keylock"
	"checkout/internal/pkg/kvstore"
	"checkout/internal/pkg/observability"
	"checkout/internal/pkg/retry"
	invapp "checkout/internal/service/inventory/application"
	invdomain "checkout/internal/service/inventory/domain"
	"checkout/internal/service/order/application/saga"
	"checkout/internal/service/order/domain"
	"checkout/internal/service/order/domain/port"
	"checkout/internal/service/order/infrastructure"
	"checkout/internal/service/order/infrastructure/adapter"
	payapp "checkout/internal/service/payment/application"
	paydomain "checkout/internal/service/payment/domain"
	payinfra "checkout/internal/service/payment/infrastructure"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	svc      *OrderApplicationService
	products kvstore.Store[invdomain.Product]
	payments kvstore.Store[paydomain.Payment]
	repo     domain.OrderRepository
	catalog  *adapter.CatalogCache
}

// brokenRelease 让补偿中的释放库存失败。
type brokenRelease struct {
	*adapter.InventoryLocalAdapter
}

func (b brokenRelease) Release(context.Context, string) error {
	return errors.New("inventory store down")
}

var testPolicy = saga.StepPolicy{
	InventoryTimeout: time.Second,
	PaymentTimeout:   time.Second,
	Retry:            retry.Policy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
}

func newHarness(t *testing.T, outcome paydomain.Outcome, wrap func(*adapter.InventoryLocalAdapter) port.InventoryService) *harness {
	t.Helper()
	ctx := context.Background()
	sink := observability.NewTelemetry("order-test", prometheus.NewRegistry())
	locker := keylock.NewMutex()

	products := kvstore.NewMemory[invdomain.Product]()
	inventory := invapp.NewService(products, kvstore.NewMemory[invdomain.Reservation](), locker, sink)
	require.NoError(t, inventory.Seed(ctx, invdomain.SeedCatalog()))

	payments := kvstore.NewMemory[paydomain.Payment]()
	authorizer := payapp.NewAuthorizer(payments, kvstore.NewMemory[string](), locker, payinfra.FixedFault{Outcome: outcome}, sink)

	invLocal := adapter.NewInventoryLocalAdapter(inventory)
	catalog := adapter.NewCatalogCache(invLocal)
	require.NoError(t, catalog.Refresh(ctx))

	var inv port.InventoryService = invLocal
	if wrap != nil {
		inv = wrap(invLocal)
	}

	repo := infrastructure.NewKVOrderRepository(kvstore.NewMemory[domain.Order]())
	svc := NewOrderApplicationService(Dependencies{
		Repo:      repo,
		Sessions:  kvstore.NewMemory[domain.Session](),
		Inventory: inv,
		Payment:   adapter.NewPaymentLocalAdapter(authorizer),
		Catalog:   catalog,
		Products:  invLocal,
		Sink:      sink,
	}, testPolicy, 10*time.Second)

	return &harness{svc: svc, products: products, payments: payments, repo: repo, catalog: catalog}
}

func (h *harness) reserved(t *testing.T, id string) int {
	t.Helper()
	p, err := h.products.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Reserved
}

func (h *harness) paymentCount(t *testing.T) int {
	t.Helper()
	all, err := h.payments.List(context.Background())
	require.NoError(t, err)
	return len(all)
}

func order(productID string, qty int, price float64) PlaceOrderRequest {
	return PlaceOrderRequest{
		UserID:        "user-1",
		Items:         []ItemRequest{{ProductID: productID, Quantity: qty, UnitPrice: price}},
		PaymentMethod: "credit_card",
	}
}

func TestPlaceOrderConfirms(t *testing.T) {
	h := newHarness(t, paydomain.Outcome{}, nil)
	ctx := context.Background()

	result, err := h.svc.PlaceOrder(ctx, order("laptop-001", 1, 1299))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, result.Status)
	assert.NotEmpty(t, result.PaymentID)
	assert.Equal(t, 1299.0, result.TotalAmount)
	assert.Equal(t, 1, h.reserved(t, "laptop-001"))
	assert.Equal(t, 1, h.paymentCount(t))

	stored, err := h.svc.GetOrder(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.Equal(t, result.PaymentID, stored.PaymentID)
}

func TestPlaceOrderInsufficientInventoryNeverPays(t *testing.T) {
	h := newHarness(t, paydomain.Outcome{}, nil)

	result, err := h.svc.PlaceOrder(context.Background(), order("watch-001", 999, 399))
	require.ErrorIs(t, err, domain.ErrInsufficientInventory)
	assert.Equal(t, "InsufficientInventoryError", domain.KindName(err))
	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Zero(t, h.reserved(t, "watch-001"))
	assert.Zero(t, h.paymentCount(t))
}

func TestPlaceOrderDeclineReleasesReservation(t *testing.T) {
	h := newHarness(t, paydomain.Outcome{Decline: true, Reason: "Insufficient funds or card declined"}, nil)

	result, err := h.svc.PlaceOrder(context.Background(), order("laptop-001", 2, 1299))
	require.ErrorIs(t, err, domain.ErrPaymentDeclined)
	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Zero(t, h.reserved(t, "laptop-001"))

	stored, err := h.svc.GetOrder(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.FailureReason)
}

func TestPlaceOrderRejectsBadInputBeforeAnyCall(t *testing.T) {
	h := newHarness(t, paydomain.Outcome{}, nil)
	ctx := context.Background()

	cases := map[string]PlaceOrderRequest{
		"no items":       {UserID: "user-1", PaymentMethod: "credit_card"},
		"zero quantity":  order("laptop-001", 0, 1299),
		"unknown item":   order("ghost-001", 1, 10),
		"missing method": {UserID: "user-1", Items: []ItemRequest{{ProductID: "laptop-001", Quantity: 1}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := h.svc.PlaceOrder(ctx, req)
			require.ErrorIs(t, err, domain.ErrValidation)
			_, findErr := h.svc.GetOrder(ctx, result.OrderID)
			assert.ErrorIs(t, findErr, domain.ErrOrderNotFound)
		})
	}
	assert.Zero(t, h.paymentCount(t))
}

func TestPlaceOrderFillsPriceFromCatalog(t *testing.T) {
	h := newHarness(t, paydomain.Outcome{}, nil)

	req := order("phone-001", 2, 0)
	result, err := h.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1998.0, result.TotalAmount)

	req = PlaceOrderRequest{UserID: "user-1", PaymentMethod: "paypal", Items: []ItemRequest{{ProductID: "tablet-001", Quantity: 1, Price: 550}}}
	result, err = h.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 550.0, result.TotalAmount, "price is accepted as an alias of unitPrice")
}

func TestPlaceOrderCompensationFailure(t *testing.T) {
	h := newHarness(t, paydomain.Outcome{Decline: true}, func(a *adapter.InventoryLocalAdapter) port.InventoryService {
		return brokenRelease{a}
	})
	ctx := context.Background()

	result, err := h.svc.PlaceOrder(ctx, order("laptop-001", 1, 1299))
	require.ErrorIs(t, err, domain.ErrCompensationFailed)
	assert.Equal(t, "CompensationFailedError", domain.KindName(err))
	assert.Equal(t, domain.StatusCompensatingFailed, result.Status)
	assert.Equal(t, 1, h.reserved(t, "laptop-001"), "reservation is still held until reconciled")

	stuck, err := h.svc.ListByStatus(ctx, domain.StatusCompensatingFailed)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, result.OrderID, stuck[0].ID)
}

func TestPlaceOrderSurvivesClientCancellation(t *testing.T) {
	h := newHarness(t, paydomain.Outcome{Latency: 50 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := h.svc.PlaceOrder(ctx, order("headphones-001", 1, 249))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, result.Status)
}

func TestConcurrentOrdersForLastUnit(t *testing.T) {
	h := newHarness(t, paydomain.Outcome{}, nil)
	ctx := context.Background()

	_, err := h.svc.PlaceOrder(ctx, order("laptop-001", 9, 1299))
	require.NoError(t, err)

	const buyers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		confirmed int
		losers    []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.PlaceOrder(ctx, order("laptop-001", 1, 1299))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				confirmed++
				return
			}
			losers = append(losers, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, confirmed)
	for _, err := range losers {
		assert.True(t, errors.Is(err, domain.ErrInsufficientInventory) || errors.Is(err, domain.ErrReservationConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 10, h.reserved(t, "laptop-001"))
}

func TestUserOrdersAndSessions(t *testing.T) {
	h := newHarness(t, paydomain.Outcome{}, nil)
	ctx := context.Background()

	_, err := h.svc.PlaceOrder(ctx, order("laptop-001", 1, 1299))
	require.NoError(t, err)
	_, _ = h.svc.PlaceOrder(ctx, order("watch-001", 999, 399))

	orders, err := h.svc.ListUserOrders(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	session, err := h.svc.CreateSession(ctx, SessionRequest{UserID: "user-1", Plan: "premium", Region: "eu"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)

	products, err := h.svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 5)
}

func TestPlaceOrderReloadsCatalogForNewProduct(t *testing.T) {
	h := newHarness(t, paydomain.Outcome{}, nil)
	h.catalog.ReloadInterval = 0
	ctx := context.Background()
	require.NoError(t, h.products.Put(ctx, "camera-001", invdomain.Product{ID: "camera-001", Name: "Camera", Price: 899, Stock: 5}))

	result, err := h.svc.PlaceOrder(ctx, order("camera-001", 1, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, result.Status)
	assert.Equal(t, 899.0, result.TotalAmount)
	assert.Equal(t, 1, h.reserved(t, "camera-001"))
}

func TestPlaceOrderUnknownProductAfterReload(t *testing.T) {
	h := newHarness(t, paydomain.Outcome{}, nil)
	h.catalog.ReloadInterval = 0

	_, err := h.svc.PlaceOrder(context.Background(), order("toaster-001", 1, 10))
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, h.paymentCount(t))
}
