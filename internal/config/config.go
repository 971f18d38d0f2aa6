package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env string `env:"APP_ENV" envDefault:"development"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`

	TokenSigningSecret string `env:"TOKEN_SIGNING_SECRET"`
	TokenIssuer        string `env:"TOKEN_ISSUER" envDefault:"auth-token-lifecycle"`

	AuthSessionTTL             time.Duration `env:"AUTH_SESSION_TTL" envDefault:"1h"`
	AuthRememberMeTTL          time.Duration `env:"AUTH_REMEMBER_ME_TTL" envDefault:"720h"`
	AuthPasswordResetTTL       time.Duration `env:"AUTH_PASSWORD_RESET_TTL" envDefault:"30m"`
	AuthEmailConfirmationTTL   time.Duration `env:"AUTH_EMAIL_CONFIRMATION_TTL" envDefault:"24h"`
	AuthRequireConfirmedEmail  bool          `env:"AUTH_REQUIRE_CONFIRMED_EMAIL" envDefault:"false"`
	AuthPasswordResetURL       string        `env:"AUTH_PASSWORD_RESET_URL" envDefault:"http://localhost:3000/reset-password"`
	AuthEmailConfirmationURL   string        `env:"AUTH_EMAIL_CONFIRMATION_URL" envDefault:"http://localhost:3000/confirm-email"`
	PasswordMinLength          int           `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	PasswordArgon2MemoryKiB    uint32        `env:"PASSWORD_ARGON2_MEMORY_KIB" envDefault:"65536"`
	PasswordArgon2Iterations   uint32        `env:"PASSWORD_ARGON2_ITERATIONS" envDefault:"3"`
	PasswordArgon2Parallelism  uint8         `env:"PASSWORD_ARGON2_PARALLELISM" envDefault:"2"`
	NotifierMaxInFlight        int64         `env:"NOTIFIER_MAX_IN_FLIGHT" envDefault:"16"`
	NotifierDeliveryTimeout    time.Duration `env:"NOTIFIER_DELIVERY_TIMEOUT" envDefault:"10s"`
	TokenStoreBackend          string        `env:"TOKEN_STORE_BACKEND" envDefault:"sql"`
	TokenStoreTimeout          time.Duration `env:"TOKEN_STORE_TIMEOUT" envDefault:"2s"`
	TokenStorePurgeGracePeriod time.Duration `env:"TOKEN_STORE_PURGE_GRACE_PERIOD" envDefault:"1h"`

	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"auth:token:"`

	MongoURI             string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase        string `env:"MONGO_DATABASE" envDefault:"auth"`
	MongoTokenCollection string `env:"MONGO_TOKEN_COLLECTION" envDefault:"single_use_tokens"`

	ReadinessProbeTimeout        time.Duration `env:"READINESS_PROBE_TIMEOUT" envDefault:"1s"`
	ShutdownObservabilityTimeout time.Duration `env:"SHUTDOWN_OBSERVABILITY_TIMEOUT" envDefault:"5s"`

	OTELServiceName           string        `env:"OTEL_SERVICE_NAME" envDefault:"auth-token-lifecycle"`
	OTELEnvironment           string        `env:"OTEL_ENVIRONMENT"`
	OTELExporterOTLPEndpoint  string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELExporterOTLPInsecure  bool          `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELMetricsExportInterval time.Duration `env:"OTEL_METRICS_EXPORT_INTERVAL" envDefault:"10s"`
	OTELTraceSamplingRatio    float64       `env:"OTEL_TRACE_SAMPLING_RATIO" envDefault:"1.0"`
	OTELMetricsEnabled        bool          `env:"OTEL_METRICS_ENABLED" envDefault:"false"`
	OTELTracingEnabled        bool          `env:"OTEL_TRACING_ENABLED" envDefault:"false"`
	OTELLogsEnabled           bool          `env:"OTEL_LOGS_ENABLED" envDefault:"false"`
	OTELLogLevel              string        `env:"OTEL_LOG_LEVEL" envDefault:"info"`
}

const (
	TokenStoreSQL    = "sql"
	TokenStoreRedis  = "redis"
	TokenStoreMongo  = "mongo"
	TokenStoreMemory = "memory"
)

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DatabaseDriver = strings.ToLower(strings.TrimSpace(c.DatabaseDriver))
	c.TokenStoreBackend = strings.ToLower(strings.TrimSpace(c.TokenStoreBackend))
	c.OTELLogLevel = strings.ToLower(strings.TrimSpace(c.OTELLogLevel))
	if c.OTELEnvironment == "" {
		c.OTELEnvironment = c.Env
	}
}

// LongestTokenTTL bounds how long any issued token can stay valid.
func (c *Config) LongestTokenTTL() time.Duration {
	longest := c.AuthSessionTTL
	for _, ttl := range []time.Duration{c.AuthRememberMeTTL, c.AuthPasswordResetTTL, c.AuthEmailConfirmationTTL} {
		if ttl > longest {
			longest = ttl
		}
	}
	return longest
}

func (c *Config) RedisEnabled() bool {
	return c.TokenStoreBackend == TokenStoreRedis
}

func (c *Config) MongoEnabled() bool {
	return c.TokenStoreBackend == TokenStoreMongo
}

func (c *Config) Validate() error {
	var errs []string
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, "DATABASE_DRIVER must be one of postgres, sqlite")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.TokenSigningSecret) < 32 {
		errs = append(errs, "TOKEN_SIGNING_SECRET must be at least 32 chars")
	}
	if strings.TrimSpace(c.TokenIssuer) == "" {
		errs = append(errs, "TOKEN_ISSUER is required")
	}
	if c.AuthSessionTTL <= 0 || c.AuthSessionTTL > 24*time.Hour {
		errs = append(errs, "AUTH_SESSION_TTL must be between 1s and 24h")
	}
	if c.AuthRememberMeTTL < c.AuthSessionTTL || c.AuthRememberMeTTL > 90*24*time.Hour {
		errs = append(errs, "AUTH_REMEMBER_ME_TTL must be between AUTH_SESSION_TTL and 90d")
	}
	if c.AuthPasswordResetTTL <= 0 || c.AuthPasswordResetTTL > 24*time.Hour {
		errs = append(errs, "AUTH_PASSWORD_RESET_TTL must be between 1s and 24h")
	}
	if c.AuthEmailConfirmationTTL <= 0 || c.AuthEmailConfirmationTTL > 7*24*time.Hour {
		errs = append(errs, "AUTH_EMAIL_CONFIRMATION_TTL must be between 1s and 7d")
	}
	if c.PasswordMinLength < 1 || c.PasswordMinLength > 128 {
		errs = append(errs, "PASSWORD_MIN_LENGTH must be between 1 and 128")
	}
	if c.PasswordArgon2MemoryKiB < 8*1024 {
		errs = append(errs, "PASSWORD_ARGON2_MEMORY_KIB must be >= 8192")
	}
	if c.PasswordArgon2Iterations == 0 {
		errs = append(errs, "PASSWORD_ARGON2_ITERATIONS must be > 0")
	}
	if c.PasswordArgon2Parallelism == 0 {
		errs = append(errs, "PASSWORD_ARGON2_PARALLELISM must be > 0")
	}
	if c.NotifierMaxInFlight <= 0 {
		errs = append(errs, "NOTIFIER_MAX_IN_FLIGHT must be > 0")
	}
	if c.NotifierDeliveryTimeout <= 0 {
		errs = append(errs, "NOTIFIER_DELIVERY_TIMEOUT must be > 0")
	}
	switch c.TokenStoreBackend {
	case TokenStoreSQL, TokenStoreMemory:
	case TokenStoreRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, "REDIS_ADDR is required when TOKEN_STORE_BACKEND=redis")
		}
		if c.RedisDB < 0 {
			errs = append(errs, "REDIS_DB must be >= 0")
		}
	case TokenStoreMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			errs = append(errs, "MONGO_URI is required when TOKEN_STORE_BACKEND=mongo")
		}
		if c.MongoDatabase == "" || c.MongoTokenCollection == "" {
			errs = append(errs, "MONGO_DATABASE and MONGO_TOKEN_COLLECTION are required when TOKEN_STORE_BACKEND=mongo")
		}
	default:
		errs = append(errs, "TOKEN_STORE_BACKEND must be one of sql, redis, mongo, memory")
	}
	if c.TokenStoreTimeout <= 0 || c.TokenStoreTimeout > 30*time.Second {
		errs = append(errs, "TOKEN_STORE_TIMEOUT must be between 1ms and 30s")
	}
	if c.TokenStorePurgeGracePeriod < 0 {
		errs = append(errs, "TOKEN_STORE_PURGE_GRACE_PERIOD must be >= 0")
	}
	if c.ReadinessProbeTimeout <= 0 {
		errs = append(errs, "READINESS_PROBE_TIMEOUT must be > 0")
	}
	if c.ShutdownObservabilityTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_OBSERVABILITY_TIMEOUT must be > 0")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if !isLocalLikeEnv(c.Env) {
		if c.TokenStoreBackend == TokenStoreMemory {
			errs = append(errs, "TOKEN_STORE_BACKEND=memory is not allowed outside local environments")
		}
		if c.DatabaseDriver == "sqlite" {
			errs = append(errs, "DATABASE_DRIVER=sqlite is not allowed outside local environments")
		}
		if c.PasswordArgon2MemoryKiB < 64*1024 {
			errs = append(errs, "PASSWORD_ARGON2_MEMORY_KIB must be >= 65536 outside local environments")
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isLocalLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local", "test":
		return true
	default:
		return false
	}
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}
