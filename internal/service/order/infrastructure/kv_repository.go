// internal/service/order/infrastructure/kv_repository.go
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"checkout/internal/pkg/kvstore"
	"checkout/internal/service/order/domain"
)

// KVOrderRepository 把订单台账存放在注入的 kvstore 中（内存或 redis）。
type KVOrderRepository struct {
	store kvstore.Store[domain.Order]
}

func NewKVOrderRepository(store kvstore.Store[domain.Order]) *KVOrderRepository {
	return &KVOrderRepository{store: store}
}

// Save 写入订单。已进入终态的订单不可再修改。
func (r *KVOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	existing, err := r.store.Get(ctx, order.ID)
	switch {
	case err == nil:
		if existing.Status.IsTerminal() {
			return fmt.Errorf("%w: order %s is already %s", domain.ErrIllegalTransition, order.ID, existing.Status)
		}
	case !errors.Is(err, kvstore.ErrNotFound):
		return err
	}
	return r.store.Put(ctx, order.ID, *order.Clone())
}

func (r *KVOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := r.store.Get(ctx, id)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *KVOrderRepository) FindByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return r.filter(ctx, func(o *domain.Order) bool { return o.UserID == userID })
}

func (r *KVOrderRepository) FindByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error) {
	return r.filter(ctx, func(o *domain.Order) bool { return o.Status == status })
}

// filter 按创建时间倒序返回匹配的订单。
func (r *KVOrderRepository) filter(ctx context.Context, match func(*domain.Order) bool) ([]*domain.Order, error) {
	all, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Order, 0)
	for i := range all {
		if o := &all[i]; match(o) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
