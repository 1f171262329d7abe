// internal/pkg/redis/client.go
package redis

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient 根据逗号分隔的地址创建客户端：单个地址为单机，多个地址为集群。
func NewClient(addrs string) (goredis.UniversalClient, error) {
	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs: strings.Split(addrs, ","),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", addrs)
	}
	return client, nil
}
