// internal/service/order/infrastructure/adapter/catalog_cache.go
package adapter

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"checkout/internal/pkg/logger"
	"checkout/internal/service/order/domain/port"

	"golang.org/x/sync/singleflight"
)

var ErrCatalogNotLoaded = errors.New("catalog not loaded yet")


// CatalogCache 在后台定期刷新商品目录，供下单前的快速校验使用。
type CatalogCache struct {
	source port.Catalog
	group  singleflight.Group
	// ReloadInterval 限制未知商品触发的重新加载频率。
	ReloadInterval time.Duration

	mu       sync.RWMutex
	products []port.CatalogProduct
	loadedAt time.Time
}

func NewCatalogCache(source port.Catalog) *CatalogCache {
	return &CatalogCache{source: source, ReloadInterval: time.Second}
}

// Products 返回最近一次成功加载的目录。
func (c *CatalogCache) Products(context.Context) ([]port.CatalogProduct, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loadedAt.IsZero() {
		return nil, ErrCatalogNotLoaded
	}
	return slices.Clone(c.products), nil
}

// Refresh 从 source 重新加载目录，失败时保留旧数据。
func (c *CatalogCache) Refresh(ctx context.Context) error {
	products, err := c.source.Products(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.products = products
	c.loadedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// Reload 在下单遇到未知商品时调用。并发调用合并为一次加载，距上次加载不足 ReloadInterval 时直接返回。
func (c *CatalogCache) Reload(ctx context.Context) error {
	c.mu.RLock()
	fresh := !c.loadedAt.IsZero() && time.Since(c.loadedAt) < c.ReloadInterval
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	ch := c.group.DoChan("reload", func() (any, error) {
		reloadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return nil, c.Refresh(reloadCtx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run 立即加载一次，然后每隔 interval 刷新，直到 ctx 结束。
func (c *CatalogCache) Run(ctx context.Context, interval time.Duration) {
	log := logger.Ctx(ctx)
	refresh := func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := c.Refresh(refreshCtx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("failed to refresh product catalog")
		}
	}

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}
