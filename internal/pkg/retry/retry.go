// internal/pkg/retry/retry.go
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy 描述一次有界的指数退避重试。总时长由调用方传入的 ctx 决定。
type Policy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy 用于库存和支付调用。
var DefaultPolicy = Policy{
	MaxRetries:      3,
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     time.Second,
}

// Permanent 标记一个不应再重试的错误。
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do 执行 op，直到成功、返回 Permanent 错误、次数用尽或 ctx 结束。
// 返回的是最后一次 op 的错误；如果是 ctx 结束导致的放弃，两者都会被包装进去。
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = backoff.WithMaxRetries(eb, p.MaxRetries)
	b = backoff.WithContext(b, ctx)

	var last error
	err := backoff.Retry(func() error {
		last = op(ctx)
		return last
	}, b)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && last != nil && ctxErr != last {
		return fmt.Errorf("%w: %w", ctxErr, last)
	}
	return err
}
