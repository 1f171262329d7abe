// internal/pkg/bootstrap/infra.go
package bootstrap

import (
	"context"
	"sync"
	"time"

	"checkout/internal/pkg/keylock"
	"checkout/internal/pkg/kvstore"
	"checkout/internal/pkg/logger"
	"checkout/internal/pkg/mq"
	pkgredis "checkout/internal/pkg/redis"
	"checkout/internal/pkg/zookeeper"

	"github.com/go-sql-driver/mysql"
	"github.com/go-zookeeper/zk"
	"github.com/redis/go-redis/v9"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Infra 按配置懒加载外部依赖。未配置的组件退回进程内实现。
type Infra struct {
	cfg InfraConfig

	mu      sync.Mutex
	redis   redis.UniversalClient
	zkConn  *zk.Conn
	locker  keylock.Locker
	db      *gorm.DB
	writers map[string]mq.MessageWriter
}

func NewInfra(cfg InfraConfig) *Infra {
	return &Infra{cfg: cfg, writers: make(map[string]mq.MessageWriter)}
}

// Redis 返回共享的客户端；未配置 redis 时返回 nil。
func (i *Infra) Redis() (redis.UniversalClient, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cfg.Redis.Addrs == "" {
		return nil, nil
	}
	if i.redis == nil {
		client, err := pkgredis.NewClient(i.cfg.Redis.Addrs)
		if err != nil {
			return nil, err
		}
		i.redis = client
		logger.L().Info().Str("addrs", i.cfg.Redis.Addrs).Msg("redis connected")
	}
	return i.redis, nil
}

// NewStore 返回以 prefix 为命名空间的 Store：配置了 redis 时用 redis，否则用内存。
func NewStore[V any](i *Infra, prefix string) (kvstore.Store[V], error) {
	client, err := i.Redis()
	if err != nil {
		return nil, err
	}
	if client == nil {
		return kvstore.NewMemory[V](), nil
	}
	return kvstore.NewRedis[V](client, prefix), nil
}

// Locker 返回共享的按 key 互斥实现：配置了 zookeeper 时为分布式锁，否则为进程内锁。
func (i *Infra) Locker() (keylock.Locker, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.locker != nil {
		return i.locker, nil
	}
	if i.cfg.Zookeeper.Servers == "" {
		i.locker = keylock.NewMutex()
		return i.locker, nil
	}

	timeout := i.cfg.Zookeeper.SessionTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	conn, err := zookeeper.Connect(i.cfg.Zookeeper.Servers, timeout)
	if err != nil {
		return nil, err
	}
	l, err := zookeeper.NewLocker(conn, i.cfg.Zookeeper.LockRoot)
	if err != nil {
		conn.Close()
		return nil, err
	}
	i.zkConn = conn
	i.locker = l
	logger.L().Info().Str("servers", i.cfg.Zookeeper.Servers).Msg("zookeeper locker ready")
	return i.locker, nil
}

// KafkaWriter 返回 topic 对应的 writer；未配置 brokers 或 topic 时返回 nil。
func (i *Infra) KafkaWriter(topic string) mq.MessageWriter {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cfg.Kafka.Brokers == "" || topic == "" {
		return nil
	}
	if w, ok := i.writers[topic]; ok {
		return w
	}
	w := mq.NewKafkaWriter(i.cfg.Kafka.Brokers, topic)
	i.writers[topic] = w
	return w
}

// DB 返回 gorm 连接；未配置 mysql 时返回 nil。
func (i *Infra) DB() (*gorm.DB, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cfg.MySQL.Addr == "" {
		return nil, nil
	}
	if i.db != nil {
		return i.db, nil
	}
	db, err := gorm.Open(gormmysql.Open(MySQLDSN(i.cfg.MySQL)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	i.db = db
	logger.L().Info().Str("addr", i.cfg.MySQL.Addr).Str("database", i.cfg.MySQL.Database).Msg("mysql connected")
	return db, nil
}

// MySQLDSN 用驱动自带的 Config 拼装 DSN。
func MySQLDSN(c MySQLConfig) string {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = c.Addr
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// Close 关闭所有已打开的连接。
func (i *Infra) Close(ctx context.Context) {
	i.mu.Lock()
	defer i.mu.Unlock()
	log := logger.Ctx(ctx)

	for topic, w := range i.writers {
		if err := w.Close(); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("failed to close kafka writer")
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis client")
		}
	}
	if i.zkConn != nil {
		i.zkConn.Close()
	}
	if i.db != nil {
		if sqlDB, err := i.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
