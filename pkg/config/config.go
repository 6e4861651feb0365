package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "entregalo"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ENTREGALO_DB_DSN"
	EnvDBHost = "ENTREGALO_DB_HOST"
	EnvDBUser = "ENTREGALO_DB_USER"
	EnvDBName = "ENTREGALO_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	Locks    LocksConfig
	Codes    CodesConfig
	Backfill BackfillConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
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
	Env          string `envconfig:"ENTREGALO_APP_ENV" required:"true"`
	Port         string `envconfig:"ENTREGALO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ENTREGALO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ENTREGALO_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"ENTREGALO_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ENTREGALO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ENTREGALO_DB_DSN"`
	Driver string `envconfig:"ENTREGALO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ENTREGALO_DB_HOST"`
	LegacyPort     int    `envconfig:"ENTREGALO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ENTREGALO_DB_USER"`
	LegacyPassword string `envconfig:"ENTREGALO_DB_PASSWORD"`
	LegacyName     string `envconfig:"ENTREGALO_DB_NAME"`
	LegacySSLMode  string `envconfig:"ENTREGALO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ENTREGALO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ENTREGALO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ENTREGALO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ENTREGALO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ENTREGALO_REDIS_URL"`
	Address      string        `envconfig:"ENTREGALO_REDIS_ADDR"`
	Password     string        `envconfig:"ENTREGALO_REDIS_PASSWORD"`
	DB           int           `envconfig:"ENTREGALO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ENTREGALO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ENTREGALO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ENTREGALO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ENTREGALO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ENTREGALO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// LocksConfig tunes the reconciliation lock manager.
type LocksConfig struct {
	// Backend selects the lock implementation: inproc for a single API
	// instance, redis when several instances share the store.
	Backend        string        `envconfig:"ENTREGALO_LOCKS_BACKEND" default:"inproc"`
	AcquireTimeout time.Duration `envconfig:"ENTREGALO_LOCKS_ACQUIRE_TIMEOUT" default:"5s"`
	TTL            time.Duration `envconfig:"ENTREGALO_LOCKS_TTL" default:"30s"`
}

// CodesConfig holds the prefixes for sequential document codes.
type CodesConfig struct {
	SessionPrefix    string `envconfig:"ENTREGALO_CODES_SESSION_PREFIX" default:"DESP"`
	SettlementPrefix string `envconfig:"ENTREGALO_CODES_SETTLEMENT_PREFIX" default:"LIQ"`
}

type BackfillConfig struct {
	BatchSize int `envconfig:"ENTREGALO_BACKFILL_BATCH_SIZE" default:"200"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ENTREGALO_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ENTREGALO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ENTREGALO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"ENTREGALO_PUBSUB_DOMAIN_TOPIC" default:"entregalo-domain-events"`
	DomainSubscription string `envconfig:"ENTREGALO_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ENTREGALO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ENTREGALO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ENTREGALO_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
