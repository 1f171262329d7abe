// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是所有服务共用的配置，来自 configs/config.yaml 并允许环境变量覆盖。
type Config struct {
	App   AppConfig   `yaml:"app"`
	Infra InfraConfig `yaml:"infra"`
}

type AppConfig struct {
	LogLevel  string          `yaml:"logLevel"`
	Order     OrderConfig     `yaml:"order"`
	Inventory InventoryConfig `yaml:"inventory"`
	Payment   PaymentConfig   `yaml:"payment"`
}

type OrderConfig struct {
	Port int `yaml:"port"`
	// Embedded 为 true 时库存和支付在 order-service 进程内运行。
	Embedded             bool          `yaml:"embedded"`
	InventoryURL         string        `yaml:"inventoryURL"`
	PaymentURL           string        `yaml:"paymentURL"`
	ProcessingTimeout    time.Duration `yaml:"processingTimeout"`
	InventoryTimeout     time.Duration `yaml:"inventoryTimeout"`
	PaymentTimeout       time.Duration `yaml:"paymentTimeout"`
	MaxRetries           uint64        `yaml:"maxRetries"`
	RetryInitialInterval time.Duration `yaml:"retryInitialInterval"`
	CatalogRefresh       time.Duration `yaml:"catalogRefresh"`
}

type InventoryConfig struct {
	Port int  `yaml:"port"`
	Seed bool `yaml:"seed"`
}

type PaymentConfig struct {
	Port   int         `yaml:"port"`
	Faults FaultConfig `yaml:"faults"`
}

type FaultConfig struct {
	MinLatency  time.Duration `yaml:"minLatency"`
	MaxLatency  time.Duration `yaml:"maxLatency"`
	FailureRate float64       `yaml:"failureRate"`
	// DeclineWhen 是一个 CEL 表达式，可用变量: orderId, userId, method, amount。
	DeclineWhen string `yaml:"declineWhen"`
}

type InfraConfig struct {
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Nacos     NacosConfig     `yaml:"nacos"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type RedisConfig struct {
	Addrs string `yaml:"addrs"`
}

type KafkaConfig struct {
	Brokers             string `yaml:"brokers"`
	NotificationTopic   string `yaml:"notificationTopic"`
	ReconciliationTopic string `yaml:"reconciliationTopic"`
	ConsumerGroup       string `yaml:"consumerGroup"`
}

type ZookeeperConfig struct {
	Servers        string        `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
	LockRoot       string        `yaml:"lockRoot"`
}

type MySQLConfig struct {
	Addr     string `yaml:"addr"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type NacosConfig struct {
	Addrs     string `yaml:"addrs"`
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
}

// DefaultConfig 返回不依赖任何外部组件即可运行的配置。
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel: "info",
			Order: OrderConfig{
				Port:                 3000,
				InventoryURL:         "http://localhost:3002",
				PaymentURL:           "http://localhost:3001",
				ProcessingTimeout:    30 * time.Second,
				InventoryTimeout:     3 * time.Second,
				PaymentTimeout:       10 * time.Second,
				MaxRetries:           3,
				RetryInitialInterval: 100 * time.Millisecond,
				CatalogRefresh:       30 * time.Second,
			},
			Inventory: InventoryConfig{Port: 3002, Seed: true},
			Payment: PaymentConfig{
				Port: 3001,
				Faults: FaultConfig{
					MinLatency:  500 * time.Millisecond,
					MaxLatency:  2500 * time.Millisecond,
					FailureRate: 0.10,
				},
			},
		},
		Infra: InfraConfig{
			Kafka: KafkaConfig{
				NotificationTopic:   "order-notifications",
				ReconciliationTopic: "order-reconciliation",
				ConsumerGroup:       "order-service-push",
			},
			Zookeeper: ZookeeperConfig{SessionTimeout: 5 * time.Second},
			Nacos:     NacosConfig{Group: "DEFAULT_GROUP"},
		},
	}
}

var (
	currentMu     sync.RWMutex
	currentConfig = DefaultConfig()
)

// Init 读取 path 指向的 yaml 文件（为空时读取 CONFIG_PATH，再退回 configs/config.yaml），
// 文件不存在时使用默认值，最后应用环境变量覆盖。
func Init(path string) (*Config, error) {
	if path == "" {
		path = getEnv("CONFIG_PATH", "configs/config.yaml")
	}

	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	currentMu.Lock()
	currentConfig = cfg
	currentMu.Unlock()
	return cfg, nil
}

// GetCurrentConfig 返回最近一次 Init 加载的配置。
func GetCurrentConfig() *Config {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return currentConfig
}

func applyEnv(cfg *Config) error {
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.Order.InventoryURL = getEnv("INVENTORY_SERVICE_URL", cfg.App.Order.InventoryURL)
	cfg.App.Order.PaymentURL = getEnv("PAYMENT_SERVICE_URL", cfg.App.Order.PaymentURL)

	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", cfg.Infra.Redis.Addrs)
	cfg.Infra.Kafka.Brokers = getEnv("KAFKA_BROKERS", cfg.Infra.Kafka.Brokers)
	cfg.Infra.Zookeeper.Servers = getEnv("ZOOKEEPER_SERVERS", cfg.Infra.Zookeeper.Servers)
	cfg.Infra.MySQL.Addr = getEnv("MYSQL_ADDR", cfg.Infra.MySQL.Addr)
	cfg.Infra.MySQL.User = getEnv("MYSQL_USER", cfg.Infra.MySQL.User)
	cfg.Infra.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.Infra.MySQL.Password)
	cfg.Infra.MySQL.Database = getEnv("MYSQL_DATABASE", cfg.Infra.MySQL.Database)
	cfg.Infra.Nacos.Addrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.Addrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)

	if v, ok := os.LookupEnv("ORDER_EMBEDDED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ORDER_EMBEDDED %q: %w", v, err)
		}
		cfg.App.Order.Embedded = b
	}
	if v, ok := os.LookupEnv("PAYMENT_FAILURE_RATE"); ok {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate < 0 || rate > 1 {
			return fmt.Errorf("invalid PAYMENT_FAILURE_RATE %q", v)
		}
		cfg.App.Payment.Faults.FailureRate = rate
	}
	return nil
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
