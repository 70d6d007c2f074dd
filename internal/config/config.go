package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
)

// Config holds the checkout server configuration.
type Config struct {
	Server         ServerConfig          `yaml:"server"`
	MySQL          MySQLConfig           `yaml:"mysql"`
	Redis          RedisConfig           `yaml:"redis"`
	Kafka          KafkaConfig           `yaml:"kafka"`
	Commerce       CommerceConfig        `yaml:"commerce"`
	Checkout       CheckoutConfig        `yaml:"checkout"`
	PaymentMethods domain.PaymentMethods `yaml:"payment_methods"`
}

type ServerConfig struct {
	HTTPAddr        string `yaml:"http_addr"`
	GRPCAddr        string `yaml:"grpc_addr"`
	RequestTimeout  string `yaml:"request_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

type MySQLConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type RedisConfig struct {
	Addr       string `yaml:"addr"`
	PoolSize   int    `yaml:"pool_size"`
	SessionTTL string `yaml:"session_ttl"`
	CartTTL    string `yaml:"cart_ttl"`
}

// KafkaConfig configures the order event publisher. Empty brokers log events instead.
type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}

type CommerceConfig struct {
	Endpoint        string `yaml:"endpoint"`
	ShopID          string `yaml:"shop_id"`
	Timeout         string `yaml:"timeout"`
	DummyCartID     string `yaml:"dummy_cart_id"`
	DefaultCurrency string `yaml:"default_currency"`
}

type CheckoutConfig struct {
	Country   string `yaml:"country"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":50051",
			RequestTimeout:  "30s",
			ShutdownTimeout: "5s",
		},
		MySQL: MySQLConfig{
			DSN:          "root:root@tcp(localhost:3306)/checkout?parseTime=true",
			MaxOpenConns: 50,
			MaxIdleConns: 25,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   100,
			SessionTTL: "2h",
			CartTTL:    "5m",
		},
		Kafka: KafkaConfig{
			Topic: "checkout.orders",
		},
		Commerce: CommerceConfig{
			Endpoint:        "http://localhost:3000/graphql",
			Timeout:         "10s",
			DummyCartID:     "__empty__",
			DefaultCurrency: "BGN",
		},
		Checkout: CheckoutConfig{
			Country:   "България",
			Workers:   10,
			QueueSize: 1000,
		},
		PaymentMethods: DefaultPaymentMethods(),
	}
}

// DefaultPaymentMethods is the storefront's payment list: cash on delivery is the
// only method enabled until the online ones launch.
func DefaultPaymentMethods() domain.PaymentMethods {
	return domain.PaymentMethods{
		{
			Name:        "iou_example",
			DisplayName: "Наложен платеж",
			IsEnabled:   true,
			CanRefund:   true,
			PluginName:  "payments-example",
			Icon:        "💵",
			Details:     "Плащане при получаване от куриер",
		},
		{
			Name:        "paysera_payment_initiation_service",
			DisplayName: "Онлайн банкиране (очаквайте скоро)",
			IsEnabled:   false,
			CanRefund:   true,
			PluginName:  "payments-paysera",
			Icon:        "🏦",
			Details:     "Сигурно плащане през вашето онлайн банкиране",
		},
		{
			Name:        "paysera_card",
			DisplayName: "Банкова карта (очаквайте скоро)",
			IsEnabled:   false,
			CanRefund:   true,
			PluginName:  "payments-paysera",
			Icon:        "💳",
			Details:     "Сигурно плащане чрез вашата Mastercard, Maestro или Visa карта",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path or a missing file yields
// the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv("GRPC_ADDR"); v != "" {
		c.Server.GRPCAddr = v
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		c.MySQL.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = v
	}
	if v := os.Getenv("COMMERCE_API_URL"); v != "" {
		c.Commerce.Endpoint = v
	}
	if v := os.Getenv("SHOP_ID"); v != "" {
		c.Commerce.ShopID = v
	}
}

func (c *Config) Validate() error {
	if c.Commerce.Endpoint == "" {
		return fmt.Errorf("commerce endpoint is required")
	}
	if c.Commerce.ShopID == "" {
		return fmt.Errorf("commerce shop id is required (set SHOP_ID)")
	}
	if c.Checkout.Workers <= 0 {
		return fmt.Errorf("checkout workers must be positive, got %d", c.Checkout.Workers)
	}
	if len(c.PaymentMethods.Enabled()) == 0 {
		return fmt.Errorf("at least one payment method must be enabled")
	}
	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	return duration(c.Server.RequestTimeout, 30*time.Second)
}

func (c *Config) ShutdownTimeout() time.Duration {
	return duration(c.Server.ShutdownTimeout, 5*time.Second)
}

func (c *Config) SessionTTL() time.Duration {
	return duration(c.Redis.SessionTTL, 2*time.Hour)
}

func (c *Config) CartTTL() time.Duration {
	return duration(c.Redis.CartTTL, 5*time.Minute)
}

func (c *Config) CommerceTimeout() time.Duration {
	return duration(c.Commerce.Timeout, 10*time.Second)
}

func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
