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
	SMTP         SMTPConfig
	Telegram     TelegramConfig
	Dispatch     DispatchConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if cfg.Dispatch.Workers <= 0 {
		return nil, fmt.Errorf("%s must be positive", "MERCADITO_DISPATCH_WORKERS")
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"MERCADITO_APP_ENV" required:"true"`
	Port         string   `envconfig:"MERCADITO_APP_PORT" default:"8080"`
	PublicURL    string   `envconfig:"MERCADITO_PUBLIC_URL" default:"http://localhost:8080"`
	ShopName     string   `envconfig:"MERCADITO_SHOP_NAME" default:"Mercadito"`
	LogLevel     string   `envconfig:"MERCADITO_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"MERCADITO_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"MERCADITO_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MERCADITO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"MERCADITO_DB_DSN"`

	Host     string `envconfig:"MERCADITO_DB_HOST"`
	Port     int    `envconfig:"MERCADITO_DB_PORT" default:"5432"`
	User     string `envconfig:"MERCADITO_DB_USER"`
	Password string `envconfig:"MERCADITO_DB_PASSWORD"`
	Name     string `envconfig:"MERCADITO_DB_NAME"`
	SSLMode  string `envconfig:"MERCADITO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MERCADITO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MERCADITO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MERCADITO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MERCADITO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MERCADITO_REDIS_URL"`
	Address      string        `envconfig:"MERCADITO_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"MERCADITO_REDIS_PASSWORD"`
	DB           int           `envconfig:"MERCADITO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MERCADITO_REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"MERCADITO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MERCADITO_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"MERCADITO_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MERCADITO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MERCADITO_JWT_ISSUER" default:"mercadito"`
	ExpirationMinutes int    `envconfig:"MERCADITO_JWT_EXPIRATION_MINUTES" default:"60"`
}

// TTL returns the access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MERCADITO_AUTO_MIGRATE" default:"false"`
}

// SMTPConfig drives the email notifier. An empty Host disables email delivery.
type SMTPConfig struct {
	Host     string `envconfig:"MERCADITO_SMTP_HOST"`
	Port     int    `envconfig:"MERCADITO_SMTP_PORT" default:"587"`
	Username string `envconfig:"MERCADITO_SMTP_USERNAME"`
	Password string `envconfig:"MERCADITO_SMTP_PASSWORD"`
	From     string `envconfig:"MERCADITO_SMTP_FROM" default:"Mercadito <no-reply@mercadito.local>"`
}

func (s SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Host) != ""
}

// TelegramConfig drives the Telegram notifier. An empty token disables it.
type TelegramConfig struct {
	BotToken string        `envconfig:"MERCADITO_TELEGRAM_BOT_TOKEN"`
	APIBase  string        `envconfig:"MERCADITO_TELEGRAM_API_BASE" default:"https://api.telegram.org"`
	Timeout  time.Duration `envconfig:"MERCADITO_TELEGRAM_TIMEOUT" default:"10s"`
}

func (t TelegramConfig) Enabled() bool {
	return strings.TrimSpace(t.BotToken) != ""
}

// DispatchConfig sizes the in-process notification worker pool.
type DispatchConfig struct {
	Workers        int           `envconfig:"MERCADITO_DISPATCH_WORKERS" default:"4"`
	QueueSize      int           `envconfig:"MERCADITO_DISPATCH_QUEUE_SIZE" default:"64"`
	WaitTimeout    time.Duration `envconfig:"MERCADITO_DISPATCH_WAIT_TIMEOUT" default:"10s"`
	IdempotencyTTL time.Duration `envconfig:"MERCADITO_DISPATCH_IDEMPOTENCY_TTL" default:"168h"`
}

type OutboxConfig struct {
	BatchSize     int           `envconfig:"MERCADITO_OUTBOX_BATCH_SIZE" default:"25"`
	PollInterval  time.Duration `envconfig:"MERCADITO_OUTBOX_POLL_INTERVAL" default:"2s"`
	MaxAttempts   int           `envconfig:"MERCADITO_OUTBOX_MAX_ATTEMPTS" default:"8"`
	MinEventAge   time.Duration `envconfig:"MERCADITO_OUTBOX_MIN_EVENT_AGE" default:"30s"`
	RetentionDays int           `envconfig:"MERCADITO_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"MERCADITO_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"MERCADITO_CRON_LOCK_TTL" default:"55m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	present := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, key := range legacyDBEnvVars {
		if present[key] == "" {
			missing = append(missing, key)
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
