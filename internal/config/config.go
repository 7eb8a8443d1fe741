package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Subscription SubscriptionConfig
	Settings     SettingsDefaults
	Bootstrap    BootstrapConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	LoginRatePerMinute    int
	LoginBurst            int
}

// NotificationConfig configures outbound email and event forwarding.
type NotificationConfig struct {
	ResendAPIKey string
	EmailFrom    string
	Workers      int
	QueueSize    int
	AMQPURL      string
	AMQPExchange string
}

// SubscriptionConfig tunes the payment lifecycle and quota enforcement.
type SubscriptionConfig struct {
	PendingTTLMinutes   int
	EnforceScanQuota    bool
	QuotaLockEnabled    bool
	QuotaLockTTLSeconds int
	ExpiryCronSpec      string
}

// SettingsDefaults seed the system settings table on first start.
type SettingsDefaults struct {
	CompanyName               string
	SupportEmail              string
	PaymentLink               string
	EmailNotificationsEnabled bool
}

// BootstrapConfig describes the administrator created when none exists.
type BootstrapConfig struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "shield-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			LoginRatePerMinute:    getEnvAsInt("AUTH_LOGIN_RATE_PER_MINUTE", 10),
			LoginBurst:            getEnvAsInt("AUTH_LOGIN_BURST", 5),
		},
		Notification: NotificationConfig{
			ResendAPIKey: os.Getenv("RESEND_API_KEY"),
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "Shield <noreply@example.com>"),
			Workers:      getEnvAsInt("NOTIFY_WORKERS", 4),
			QueueSize:    getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			AMQPURL:      os.Getenv("NOTIFY_AMQP_URL"),
			AMQPExchange: getEnv("NOTIFY_AMQP_EXCHANGE", "shield.security-events"),
		},
		Subscription: SubscriptionConfig{
			PendingTTLMinutes:   getEnvAsInt("SUBSCRIPTION_PENDING_TTL_MINUTES", 30),
			EnforceScanQuota:    getEnvAsBool("SUBSCRIPTION_ENFORCE_SCAN_QUOTA", true),
			QuotaLockEnabled:    getEnvAsBool("QUOTA_LOCK_ENABLED", true),
			QuotaLockTTLSeconds: getEnvAsInt("QUOTA_LOCK_TTL_SECONDS", 10),
			ExpiryCronSpec:      getEnv("SUBSCRIPTION_EXPIRY_CRON", "0 0 * * * *"),
		},
		Settings: SettingsDefaults{
			CompanyName:               getEnv("SETTINGS_COMPANY_NAME", "Yalla-Hack Shield"),
			SupportEmail:              getEnv("SETTINGS_SUPPORT_EMAIL", "support@yalla-hack.net"),
			PaymentLink:               getEnv("SETTINGS_PAYMENT_LINK", "https://paypal.me/yallahack"),
			EmailNotificationsEnabled: getEnvAsBool("SETTINGS_EMAIL_NOTIFICATIONS_ENABLED", true),
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
			AdminEmail:    getEnv("ADMIN_EMAIL", "admin@yalla-hack.net"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// PendingTTL is the confirmation window of an initiated payment.
func (s SubscriptionConfig) PendingTTL() time.Duration {
	if s.PendingTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(s.PendingTTLMinutes) * time.Minute
}

// QuotaLockTTL bounds how long a quota lock may be held.
func (s SubscriptionConfig) QuotaLockTTL() time.Duration {
	if s.QuotaLockTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.QuotaLockTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
