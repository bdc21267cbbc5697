// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strings"
	"sync"

	"atlas/internal/pkg/logger"

	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置结构。
// 来源优先级：环境变量 > yaml 文件 > 内置默认值。
type Config struct {
	App struct {
		FeatureFlags struct {
			// EnablePaymentTimeout 控制是否通过延迟消息调度支付超时检查
			EnablePaymentTimeout bool `yaml:"enablePaymentTimeout"`
			// EnableZookeeperLock 控制 capture/cancel 是否使用跨副本分布式锁
			EnableZookeeperLock bool `yaml:"enableZookeeperLock"`
		} `yaml:"featureFlags"`
	} `yaml:"app"`

	Infra struct {
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Kafka struct {
			Brokers           []string `yaml:"brokers"`
			OrderEventsTopic  string   `yaml:"orderEventsTopic"`
			DelayTopic        string   `yaml:"delayTopic"`
			TimeoutCheckTopic string   `yaml:"timeoutCheckTopic"`
		} `yaml:"kafka"`
		Redis struct {
			Addrs string `yaml:"addrs"`
		} `yaml:"redis"`
		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`
		Zookeeper struct {
			Servers string `yaml:"servers"`
		} `yaml:"zookeeper"`
	} `yaml:"infra"`

	// 各协作方服务的基础地址
	Services struct {
		CartURL     string `yaml:"cartUrl"`
		CatalogURL  string `yaml:"catalogUrl"`
		ShippingURL string `yaml:"shippingUrl"`
		PaymentURL  string `yaml:"paymentUrl"`
		StockURL    string `yaml:"stockUrl"`
	} `yaml:"services"`

	Order struct {
		// ReservationTTLMinutes 是库存预占的生存时间，也是支付窗口的上限
		ReservationTTLMinutes    int `yaml:"reservationTtlMinutes"`
		ProcessingTimeoutSeconds int `yaml:"processingTimeoutSeconds"`
	} `yaml:"order"`

	Stock struct {
		SweepIntervalSeconds int `yaml:"sweepIntervalSeconds"`
	} `yaml:"stock"`
}

var (
	currentConfig *Config
	configOnce    sync.Once
)

// Init 加载配置，应在 main 最早处调用。
func Init() {
	configOnce.Do(func() {
		currentConfig = loadConfig()
	})
}

// GetCurrentConfig 返回当前生效的配置。未调用 Init 时返回默认配置。
func GetCurrentConfig() *Config {
	Init()
	return currentConfig
}

func loadConfig() *Config {
	cfg := defaultConfig()

	path := getEnv("CONFIG_PATH", "configs/config.yaml")
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			logger.Logger().Error().Err(err).Str("path", path).Msg("invalid config file, falling back to defaults")
			cfg = defaultConfig()
		} else {
			logger.Logger().Printf("Config loaded from %s", path)
		}
	}

	// 环境变量覆盖，便于容器化部署
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		cfg.Infra.Jaeger.Endpoint = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDRS"); v != "" {
		cfg.Infra.Redis.Addrs = v
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.Infra.Mysql.DSN = v
	}
	if v := os.Getenv("ZOOKEEPER_SERVERS"); v != "" {
		cfg.Infra.Zookeeper.Servers = v
	}
	if v := os.Getenv("CART_SERVICE_URL"); v != "" {
		cfg.Services.CartURL = v
	}
	if v := os.Getenv("CATALOG_SERVICE_URL"); v != "" {
		cfg.Services.CatalogURL = v
	}
	if v := os.Getenv("SHIPPING_SERVICE_URL"); v != "" {
		cfg.Services.ShippingURL = v
	}
	if v := os.Getenv("PAYMENT_SERVICE_URL"); v != "" {
		cfg.Services.PaymentURL = v
	}
	if v := os.Getenv("STOCK_SERVICE_URL"); v != "" {
		cfg.Services.StockURL = v
	}

	return cfg
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Infra.Kafka.OrderEventsTopic = "order-events"
	cfg.Infra.Kafka.DelayTopic = "delay-topic-15m"
	cfg.Infra.Kafka.TimeoutCheckTopic = "order-timeout-check-topic"
	cfg.Infra.Redis.Addrs = "localhost:6379"
	cfg.Services.CartURL = "http://localhost:8083"
	cfg.Services.CatalogURL = "http://localhost:8084"
	cfg.Services.ShippingURL = "http://localhost:8085"
	cfg.Services.PaymentURL = "http://localhost:8086"
	cfg.Services.StockURL = "http://localhost:8082"
	cfg.Order.ReservationTTLMinutes = 15
	cfg.Order.ProcessingTimeoutSeconds = 30
	cfg.Stock.SweepIntervalSeconds = 60
	cfg.App.FeatureFlags.EnablePaymentTimeout = true
	return cfg
}

// getEnv 从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
