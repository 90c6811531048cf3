package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Commerce     CommerceConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Commerce.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COMMERCE_APP_ENV" required:"true"`
	Port         string `envconfig:"COMMERCE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"COMMERCE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COMMERCE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// HTTPConfig tunes the public API surface.
type HTTPConfig struct {
	CORSOrigins        []string      `envconfig:"COMMERCE_HTTP_CORS_ORIGINS"`
	CheckoutRateLimit  int           `envconfig:"COMMERCE_HTTP_CHECKOUT_RATE_LIMIT" default:"10"`
	CheckoutRateWindow time.Duration `envconfig:"COMMERCE_HTTP_CHECKOUT_RATE_WINDOW" default:"1m"`
	ShutdownTimeout    time.Duration `envconfig:"COMMERCE_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

type ServiceConfig struct {
	Kind string `envconfig:"COMMERCE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"COMMERCE_DB_DSN"`

	LegacyHost     string `envconfig:"COMMERCE_DB_HOST"`
	LegacyPort     int    `envconfig:"COMMERCE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COMMERCE_DB_USER"`
	LegacyPassword string `envconfig:"COMMERCE_DB_PASSWORD"`
	LegacyName     string `envconfig:"COMMERCE_DB_NAME"`
	LegacySSLMode  string `envconfig:"COMMERCE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COMMERCE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COMMERCE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COMMERCE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COMMERCE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COMMERCE_REDIS_URL"`
	Address      string        `envconfig:"COMMERCE_REDIS_ADDR"`
	Password     string        `envconfig:"COMMERCE_REDIS_PASSWORD"`
	DB           int           `envconfig:"COMMERCE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COMMERCE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COMMERCE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COMMERCE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COMMERCE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COMMERCE_REDIS_WRITE_TIMEOUT" default:"5s"`
	CartCacheTTL time.Duration `envconfig:"COMMERCE_REDIS_CART_CACHE_TTL" default:"10m"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"COMMERCE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COMMERCE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COMMERCE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"COMMERCE_AUTO_MIGRATE" default:"false"`
}

// CommerceConfig carries the pricing and retention knobs of the transaction engine.
type CommerceConfig struct {
	TaxRate               decimal.Decimal `envconfig:"COMMERCE_TAX_RATE" default:"0.08"`
	ShippingFee           decimal.Decimal `envconfig:"COMMERCE_SHIPPING_FEE" default:"5.99"`
	FreeShippingThreshold decimal.Decimal `envconfig:"COMMERCE_FREE_SHIPPING_THRESHOLD" default:"50"`
	CartTTL               time.Duration   `envconfig:"COMMERCE_CART_TTL" default:"720h"`
	RestockOnRefund       bool            `envconfig:"COMMERCE_RESTOCK_ON_REFUND" default:"false"`
}

func (c CommerceConfig) validate() error {
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be between 0 and 1", EnvTaxRate)
	}
	if c.ShippingFee.IsNegative() {
		return fmt.Errorf("%s must be non-negative", EnvShippingFee)
	}
	if c.CartTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvCartTTL)
	}
	return nil
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"COMMERCE_CRON_INTERVAL" default:"1h"`
	LockTTL         time.Duration `envconfig:"COMMERCE_CRON_LOCK_TTL" default:"30m"`
	CartSweepBatch  int           `envconfig:"COMMERCE_CRON_CART_SWEEP_BATCH" default:"500"`
	OutboxRetention time.Duration `envconfig:"COMMERCE_CRON_OUTBOX_RETENTION" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"COMMERCE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"COMMERCE_PUBSUB_ORDERS_TOPIC" default:"commerce-order-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"COMMERCE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"COMMERCE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"COMMERCE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
