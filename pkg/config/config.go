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
	Sweep        SweepConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
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
	Env          string `envconfig:"QMS_APP_ENV" required:"true"`
	Port         string `envconfig:"QMS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"QMS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"QMS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"QMS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"QMS_DB_DSN"`
	Driver string `envconfig:"QMS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"QMS_DB_HOST"`
	LegacyPort     int    `envconfig:"QMS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"QMS_DB_USER"`
	LegacyPassword string `envconfig:"QMS_DB_PASSWORD"`
	LegacyName     string `envconfig:"QMS_DB_NAME"`
	LegacySSLMode  string `envconfig:"QMS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"QMS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"QMS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"QMS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"QMS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"QMS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"QMS_REDIS_ADDR"`
	Password     string        `envconfig:"QMS_REDIS_PASSWORD"`
	DB           int           `envconfig:"QMS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"QMS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"QMS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"QMS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"QMS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"QMS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"QMS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"QMS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"QMS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"QMS_AUTO_MIGRATE" default:"false"`
}

// SweepConfig tunes the subscription status sweep worker.
type SweepConfig struct {
	Interval  time.Duration `envconfig:"QMS_SWEEP_INTERVAL" default:"24h"`
	LockTTL   time.Duration `envconfig:"QMS_SWEEP_LOCK_TTL" default:"25h"`
	BatchSize int           `envconfig:"QMS_SWEEP_BATCH_SIZE" default:"500"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"QMS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"QMS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"QMS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BillingSubscription string `envconfig:"QMS_PUBSUB_BILLING_SUBSCRIPTION"`
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
