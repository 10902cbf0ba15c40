package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "COLLECTMALL"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "COLLECTMALL_DB_DSN"
	EnvDBHost = "COLLECTMALL_DB_HOST"
	EnvDBUser = "COLLECTMALL_DB_USER"
	EnvDBName = "COLLECTMALL_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Chain        ChainConfig
	Cron         CronConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COLLECTMALL_APP_ENV" required:"true"`
	Port         string `envconfig:"COLLECTMALL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COLLECTMALL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COLLECTMALL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COLLECTMALL_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COLLECTMALL_DB_DSN"`
	Driver string `envconfig:"COLLECTMALL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COLLECTMALL_DB_HOST"`
	LegacyPort     int    `envconfig:"COLLECTMALL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COLLECTMALL_DB_USER"`
	LegacyPassword string `envconfig:"COLLECTMALL_DB_PASSWORD"`
	LegacyName     string `envconfig:"COLLECTMALL_DB_NAME"`
	LegacySSLMode  string `envconfig:"COLLECTMALL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COLLECTMALL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COLLECTMALL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COLLECTMALL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COLLECTMALL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COLLECTMALL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COLLECTMALL_REDIS_ADDR"`
	Password     string        `envconfig:"COLLECTMALL_REDIS_PASSWORD"`
	DB           int           `envconfig:"COLLECTMALL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COLLECTMALL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COLLECTMALL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COLLECTMALL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COLLECTMALL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COLLECTMALL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COLLECTMALL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COLLECTMALL_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"COLLECTMALL_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"COLLECTMALL_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"COLLECTMALL_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"COLLECTMALL_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ChainTopic              string `envconfig:"COLLECTMALL_PUBSUB_CHAIN_TOPIC" required:"true"`
	ChainResultSubscription string `envconfig:"COLLECTMALL_PUBSUB_CHAIN_RESULT_SUBSCRIPTION" required:"true"`
	InventoryTopic          string `envconfig:"COLLECTMALL_PUBSUB_INVENTORY_TOPIC" required:"true"`
	InventorySubscription   string `envconfig:"COLLECTMALL_PUBSUB_INVENTORY_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"COLLECTMALL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"COLLECTMALL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"COLLECTMALL_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type ChainConfig struct {
	ResubmitAfter time.Duration `envconfig:"COLLECTMALL_CHAIN_RESUBMIT_AFTER" default:"30m"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"COLLECTMALL_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"COLLECTMALL_CRON_LOCK_TTL" default:"55m"`
}

type RateLimitConfig struct {
	OrderWindow     time.Duration `envconfig:"COLLECTMALL_RATE_LIMIT_ORDER_WINDOW" default:"1m"`
	OrderIPLimit    int           `envconfig:"COLLECTMALL_RATE_LIMIT_ORDER_IP_LIMIT" default:"120"`
	OrderBuyerLimit int           `envconfig:"COLLECTMALL_RATE_LIMIT_ORDER_BUYER_LIMIT" default:"30"`
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
