package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	Notifier     NotifierConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Outbox       OutboxConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CAFEQUEUE_APP_ENV" required:"true"`
	Port         string `envconfig:"CAFEQUEUE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CAFEQUEUE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CAFEQUEUE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CAFEQUEUE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"CAFEQUEUE_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	origins := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type ServiceConfig struct {
	Kind string `envconfig:"CAFEQUEUE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CAFEQUEUE_DB_DSN"`
	Driver string `envconfig:"CAFEQUEUE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CAFEQUEUE_DB_HOST"`
	Port     int    `envconfig:"CAFEQUEUE_DB_PORT" default:"5432"`
	User     string `envconfig:"CAFEQUEUE_DB_USER"`
	Password string `envconfig:"CAFEQUEUE_DB_PASSWORD"`
	Name     string `envconfig:"CAFEQUEUE_DB_NAME"`
	SSLMode  string `envconfig:"CAFEQUEUE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CAFEQUEUE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAFEQUEUE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAFEQUEUE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAFEQUEUE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"CAFEQUEUE_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAFEQUEUE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CAFEQUEUE_REDIS_ADDR"`
	Password     string        `envconfig:"CAFEQUEUE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAFEQUEUE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAFEQUEUE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAFEQUEUE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAFEQUEUE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAFEQUEUE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAFEQUEUE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CAFEQUEUE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CAFEQUEUE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CAFEQUEUE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// TTL returns the access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CAFEQUEUE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CAFEQUEUE_AUTO_MIGRATE" default:"false"`
}

// CheckoutConfig drives pricing and reservation holds.
type CheckoutConfig struct {
	Currency       string        `envconfig:"CAFEQUEUE_CHECKOUT_CURRENCY" default:"usd"`
	TaxRateBps     int           `envconfig:"CAFEQUEUE_CHECKOUT_TAX_RATE_BPS" default:"825"`
	PlatformFeeBps int           `envconfig:"CAFEQUEUE_CHECKOUT_PLATFORM_FEE_BPS" default:"500"`
	ReservationTTL time.Duration `envconfig:"CAFEQUEUE_CHECKOUT_RESERVATION_TTL" default:"15m"`
	MaxCASAttempts int           `envconfig:"CAFEQUEUE_CHECKOUT_MAX_CAS_ATTEMPTS" default:"5"`
	MaxLines       int           `envconfig:"CAFEQUEUE_CHECKOUT_MAX_LINES" default:"50"`
}

func (c CheckoutConfig) validate() error {
	if c.TaxRateBps < 0 || c.TaxRateBps > 10000 {
		return fmt.Errorf("%s must be between 0 and 10000", EnvCheckoutTaxRateBps)
	}
	if c.PlatformFeeBps < 0 || c.PlatformFeeBps > 10000 {
		return fmt.Errorf("%s must be between 0 and 10000", EnvCheckoutPlatformFeeBps)
	}
	if c.ReservationTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvCheckoutReservationTTL)
	}
	return nil
}

type NotifierConfig struct {
	PollInterval  time.Duration `envconfig:"CAFEQUEUE_NOTIFIER_POLL_INTERVAL" default:"10s"`
	ChannelPrefix string        `envconfig:"CAFEQUEUE_NOTIFIER_CHANNEL_PREFIX" default:"cq:shop-orders"`
	BufferSize    int           `envconfig:"CAFEQUEUE_NOTIFIER_BUFFER_SIZE" default:"32"`
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"CAFEQUEUE_CRON_INTERVAL" default:"1m"`
	LockTTL        time.Duration `envconfig:"CAFEQUEUE_CRON_LOCK_TTL" default:"50s"`
	SweepBatchSize int           `envconfig:"CAFEQUEUE_CRON_SWEEP_BATCH_SIZE" default:"200"`
	OutboxKeepDays int           `envconfig:"CAFEQUEUE_CRON_OUTBOX_KEEP_DAYS" default:"30"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CAFEQUEUE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"CAFEQUEUE_PUBSUB_DOMAIN_TOPIC" default:"cq-domain-events"`

	// batching applied to every publisher handle
	PublishDelay    time.Duration `envconfig:"CAFEQUEUE_PUBSUB_PUBLISH_DELAY" default:"10ms"`
	PublishBatchMax int           `envconfig:"CAFEQUEUE_PUBSUB_PUBLISH_BATCH_MAX" default:"100"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CAFEQUEUE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CAFEQUEUE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CAFEQUEUE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"CAFEQUEUE_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"CAFEQUEUE_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"CAFEQUEUE_STRIPE_ENV" default:"test"`

	BreakerMaxFailures uint32        `envconfig:"CAFEQUEUE_STRIPE_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"CAFEQUEUE_STRIPE_BREAKER_OPEN_TIMEOUT" default:"30s"`
	WebhookDedupeTTL   time.Duration `envconfig:"CAFEQUEUE_STRIPE_WEBHOOK_DEDUPE_TTL" default:"720h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

// RateLimitConfig throttles write endpoints per user.
type RateLimitConfig struct {
	CheckoutPerWindow int           `envconfig:"CAFEQUEUE_RATE_LIMIT_CHECKOUT" default:"20"`
	WritesPerWindow   int           `envconfig:"CAFEQUEUE_RATE_LIMIT_WRITES" default:"120"`
	Window            time.Duration `envconfig:"CAFEQUEUE_RATE_LIMIT_WINDOW" default:"1m"`
}
