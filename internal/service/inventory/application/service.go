// internal/service/inventory/application/service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout/internal/pkg/keylock"
	"checkout/internal/pkg/kvstore"
	"checkout/internal/pkg/observability"
	"checkout/internal/service/inventory/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Service 拥有商品库存计数器和预留台账，是库存唯一的写入方。
type Service struct {
	products     kvstore.Store[domain.Product]
	reservations kvstore.Store[domain.Reservation]
	locker       keylock.Locker
	sink         observability.Sink
}

func NewService(products kvstore.Store[domain.Product], reservations kvstore.Store[domain.Reservation], locker keylock.Locker, sink observability.Sink) *Service {
	return &Service{
		products:     products,
		reservations: reservations,
		locker:       locker,
		sink:         sink,
	}
}

func orderLockKey(orderID string) string     { return "inventory:order:" + orderID }
func productLockKey(productID string) string { return "inventory:product:" + productID }

// Seed 写入初始目录，已存在的商品保持不变。
func (s *Service) Seed(ctx context.Context, catalog []domain.Product) error {
	for _, p := range catalog {
		stored, created, err := s.products.PutIfAbsent(ctx, p.ID, p)
		if err != nil {
			return fmt.Errorf("seed %s: %w", p.ID, err)
		}
		if created {
			s.sink.Logger(ctx).Debug().Str("product_id", p.ID).Int("stock", p.Stock).Msg("product seeded")
		}
		s.sink.InventoryLevel(stored.ID, stored.Available())
	}
	return nil
}

// List 返回所有商品的快照。
func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.products.List(ctx)
}

// Validate 是只读、无锁的校验，结果只作参考，Reserve 才是最终裁决。
func (s *Service) Validate(ctx context.Context, items []domain.Item) (domain.ValidationResult, error) {
	ctx, span := s.sink.Start(ctx, "inventory.Validate", attribute.Int("items.count", len(items)))
	defer span.End()

	merged, err := normalize(items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid items")
		return domain.ValidationResult{}, err
	}

	result := domain.ValidationResult{Valid: true, Results: make([]domain.ItemValidation, 0, len(merged))}
	for _, item := range merged {
		available := 0
		p, err := s.products.Get(ctx, item.ProductID)
		switch {
		case errors.Is(err, kvstore.ErrNotFound):
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, "inventory read failed")
			return domain.ValidationResult{}, err
		default:
			available = p.Available()
		}

		valid := available >= item.Quantity
		result.Results = append(result.Results, domain.ItemValidation{
			ProductID: item.ProductID,
			Requested: item.Quantity,
			Available: available,
			Valid:     valid,
		})
		result.Valid = result.Valid && valid
	}

	span.SetAttributes(attribute.Bool("inventory.valid", result.Valid))
	return result, nil
}

// Reserve 在所有相关商品的锁内重新检查可用量，要么全部预占，要么一个都不占。
// 同一个 orderID 重复调用返回已有的预占结果。
func (s *Service) Reserve(ctx context.Context, orderID string, items []domain.Item) (domain.ReservationResult, error) {
	ctx, span := s.sink.Start(ctx, "inventory.Reserve",
		attribute.String("order.id", orderID),
		attribute.Int("items.count", len(items)),
	)
	defer span.End()
	log := s.sink.Logger(ctx)

	if orderID == "" {
		return domain.ReservationResult{}, fmt.Errorf("%w: orderId is required", domain.ErrInvalidItems)
	}
	merged, err := normalize(items)
	if err != nil {
		return domain.ReservationResult{}, err
	}

	unlockOrder, err := s.locker.Lock(ctx, orderLockKey(orderID))
	if err != nil {
		return domain.ReservationResult{}, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	defer unlockOrder()

	existing, err := s.reservations.Get(ctx, orderID)
	if err == nil {
		span.AddEvent("reservation already exists")
		return resultOf(existing), nil
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		return domain.ReservationResult{}, err
	}

	keys := make([]string, 0, len(merged))
	for _, item := range merged {
		keys = append(keys, productLockKey(item.ProductID))
	}
	unlockProducts, err := keylock.LockAll(ctx, s.locker, keys...)
	if err != nil {
		return domain.ReservationResult{}, fmt.Errorf("lock products: %w", err)
	}
	defer unlockProducts()

	originals := make([]domain.Product, 0, len(merged))
	for _, item := range merged {
		p, err := s.products.Get(ctx, item.ProductID)
		if errors.Is(err, kvstore.ErrNotFound) {
			return domain.ReservationResult{}, fmt.Errorf("%w: %s", domain.ErrUnknownProduct, item.ProductID)
		}
		if err != nil {
			return domain.ReservationResult{}, err
		}
		if p.Available() < item.Quantity {
			conflict := &domain.ConflictError{ProductID: p.ID, Requested: item.Quantity, Available: p.Available()}
			span.RecordError(conflict)
			span.SetStatus(codes.Error, "reservation conflict")
			log.Warn().Str("order_id", orderID).Err(conflict).Msg("reservation rejected")
			return domain.ReservationResult{}, conflict
		}
		originals = append(originals, p)
	}

	// 持有商品锁之后的写入不再跟随调用方取消，否则中途取消会留下没有台账的预占。
	commitCtx := context.WithoutCancel(ctx)
	written := 0
	rollback := func() {
		for _, p := range originals[:written] {
			if err := s.products.Put(commitCtx, p.ID, p); err != nil {
				log.Error().Err(err).Str("product_id", p.ID).Msg("failed to roll back reservation")
			}
		}
	}
	for i, item := range merged {
		p := originals[i]
		p.Reserved += item.Quantity
		if err := s.products.Put(commitCtx, p.ID, p); err != nil {
			rollback()
			return domain.ReservationResult{}, err
		}
		written++
	}

	entry := domain.Reservation{OrderID: orderID, Items: merged, ReservedAt: time.Now().UTC()}
	if err := s.reservations.Put(commitCtx, orderID, entry); err != nil {
		rollback()
		return domain.ReservationResult{}, err
	}

	for i, item := range merged {
		s.sink.InventoryLevel(item.ProductID, originals[i].Available()-item.Quantity)
	}
	span.AddEvent("all items reserved")
	log.Info().Str("order_id", orderID).Int("items", len(merged)).Msg("inventory reserved")
	return resultOf(entry), nil
}

// Release 按台账精确归还预占数量并删除台账。台账不存在时什么也不做，返回 false。
func (s *Service) Release(ctx context.Context, orderID string) (bool, error) {
	ctx, span := s.sink.Start(ctx, "inventory.Release", attribute.String("order.id", orderID))
	defer span.End()
	log := s.sink.Logger(ctx)

	unlockOrder, err := s.locker.Lock(ctx, orderLockKey(orderID))
	if err != nil {
		return false, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	defer unlockOrder()

	entry, err := s.reservations.Get(ctx, orderID)
	if errors.Is(err, kvstore.ErrNotFound) {
		span.AddEvent("no reservation to release")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	keys := make([]string, 0, len(entry.Items))
	for _, item := range entry.Items {
		keys = append(keys, productLockKey(item.ProductID))
	}
	unlockProducts, err := keylock.LockAll(ctx, s.locker, keys...)
	if err != nil {
		return false, fmt.Errorf("lock products: %w", err)
	}
	defer unlockProducts()

	commitCtx := context.WithoutCancel(ctx)
	for i, item := range entry.Items {
		if err := s.releaseItem(commitCtx, item); err != nil {
			// 把尚未归还的部分写回台账，重试时不会重复扣减。
			remaining := entry
			remaining.Items = entry.Items[i:]
			if putErr := s.reservations.Put(commitCtx, orderID, remaining); putErr != nil {
				log.Error().Err(putErr).Str("order_id", orderID).Msg("failed to persist partial release")
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "release failed")
			return false, err
		}
	}

	if err := s.reservations.Delete(commitCtx, orderID); err != nil {
		return false, err
	}
	log.Info().Str("order_id", orderID).Int("items", len(entry.Items)).Msg("inventory released")
	return true, nil
}

func (s *Service) releaseItem(ctx context.Context, item domain.Item) error {
	p, err := s.products.Get(ctx, item.ProductID)
	if errors.Is(err, kvstore.ErrNotFound) {
		s.sink.Logger(ctx).Warn().Str("product_id", item.ProductID).Msg("released product no longer exists")
		return nil
	}
	if err != nil {
		return err
	}

	p.Reserved -= item.Quantity
	if p.Reserved < 0 {
		s.sink.Logger(ctx).Warn().Str("product_id", p.ID).Int("reserved", p.Reserved).Msg("reserved count went negative, clamping")
		p.Reserved = 0
	}
	if err := s.products.Put(ctx, p.ID, p); err != nil {
		return err
	}
	s.sink.InventoryLevel(p.ID, p.Available())
	return nil
}

// normalize 校验每一行并合并同一商品的多行，保留首次出现的顺序。
func normalize(items []domain.Item) ([]domain.Item, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items must not be empty", domain.ErrInvalidItems)
	}
	index := make(map[string]int, len(items))
	merged := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			return nil, fmt.Errorf("%w: productId is required", domain.ErrInvalidItems)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", domain.ErrInvalidItems, item.ProductID)
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

func resultOf(r domain.Reservation) domain.ReservationResult {
	return domain.ReservationResult{
		OrderID:      r.OrderID,
		Reservations: r.Items,
		Status:       domain.ReservationStatusReserved,
	}
}
