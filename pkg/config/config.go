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
	Queue        QueueConfig
	Worker       WorkerConfig
	Email        EmailConfig
	Retention    RetentionConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"LEARNSPHERE_APP_ENV" required:"true"`
	Port         string `envconfig:"LEARNSPHERE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LEARNSPHERE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEARNSPHERE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LEARNSPHERE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LEARNSPHERE_DB_DSN"`
	Driver string `envconfig:"LEARNSPHERE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LEARNSPHERE_DB_HOST"`
	LegacyPort     int    `envconfig:"LEARNSPHERE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEARNSPHERE_DB_USER"`
	LegacyPassword string `envconfig:"LEARNSPHERE_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEARNSPHERE_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEARNSPHERE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEARNSPHERE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEARNSPHERE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEARNSPHERE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEARNSPHERE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEARNSPHERE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LEARNSPHERE_REDIS_ADDR"`
	Password     string        `envconfig:"LEARNSPHERE_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEARNSPHERE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEARNSPHERE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEARNSPHERE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEARNSPHERE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEARNSPHERE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEARNSPHERE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// QueueConfig tunes the notification job queue. Backoff and attempts are the
// defaults stamped onto jobs that do not carry their own options.
type QueueConfig struct {
	Name            string        `envconfig:"LEARNSPHERE_QUEUE_NAME" default:"notifications"`
	LeaseDuration   time.Duration `envconfig:"LEARNSPHERE_QUEUE_LEASE_DURATION" default:"30s"`
	DefaultAttempts int           `envconfig:"LEARNSPHERE_QUEUE_DEFAULT_ATTEMPTS" default:"3"`
	BackoffType     string        `envconfig:"LEARNSPHERE_QUEUE_BACKOFF_TYPE" default:"exponential"`
	BackoffDelay    time.Duration `envconfig:"LEARNSPHERE_QUEUE_BACKOFF_DELAY" default:"5s"`
}

type WorkerConfig struct {
	Concurrency  int           `envconfig:"LEARNSPHERE_WORKER_CONCURRENCY" default:"4"`
	PollInterval time.Duration `envconfig:"LEARNSPHERE_WORKER_POLL_INTERVAL" default:"1s"`
}

type EmailConfig struct {
	Host     string `envconfig:"LEARNSPHERE_EMAIL_HOST"`
	Port     int    `envconfig:"LEARNSPHERE_EMAIL_PORT" default:"587"`
	Username string `envconfig:"LEARNSPHERE_EMAIL_USER"`
	Password string `envconfig:"LEARNSPHERE_EMAIL_PASS"`
	From     string `envconfig:"LEARNSPHERE_EMAIL_FROM"`
}

type RetentionConfig struct {
	NotificationDays int           `envconfig:"LEARNSPHERE_RETENTION_NOTIFICATION_DAYS" default:"30"`
	QueueMaxAge      time.Duration `envconfig:"LEARNSPHERE_RETENTION_QUEUE_MAX_AGE" default:"24h"`
	QueueCleanLimit  int           `envconfig:"LEARNSPHERE_RETENTION_QUEUE_CLEAN_LIMIT" default:"100"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LEARNSPHERE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LEARNSPHERE_AUTO_MIGRATE" default:"false"`
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
