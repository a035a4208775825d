package configs

import (
	"fmt"
	"time"

	"github.com/hilthontt/parley/internal/infrastructure/env"
	"github.com/hilthontt/parley/internal/infrastructure/validate"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	FallbackLocal   = "local"
	FallbackPolling = "polling"

	ModeSequential = "sequential"
	ModeConcurrent = "concurrent"
)

type Config struct {
	HTTP        HTTPConfig        `koanf:"http"`
	RateLimiter RateLimiterConfig `koanf:"rateLimiter"`
	Presence    PresenceConfig    `koanf:"presence"`
	Typing      TypingConfig      `koanf:"typing"`
	Sync        SyncConfig        `koanf:"sync"`
	Redis       RedisConfig       `koanf:"redis"`
	Polling     PollingConfig     `koanf:"polling"`
	Translation TranslationConfig `koanf:"translation"`
	Identity    IdentityConfig    `koanf:"identity"`
	Tracing     TracingConfig     `koanf:"tracing"`
	RabbitMQ    RabbitMQConfig    `koanf:"rabbitmq"`
	Mongo       MongoConfig       `koanf:"mongo"`
	Sentry      SentryConfig      `koanf:"sentry"`
}

type HTTPConfig struct {
	Host           string        `koanf:"host"`
	Port           uint16        `koanf:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	AllowedHeaders []string      `koanf:"allowed_headers"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

type RateLimiterConfig struct {
	MaxRatePerSecond int           `koanf:"maxRatePerSecond"`
	MaxBurst         int           `koanf:"maxBurst"`
	CacheTTL         time.Duration `koanf:"cacheTTL"`
	SourceHeaderKey  string        `koanf:"sourceHeaderKey"`
}

type PresenceConfig struct {
	StaleAfter         time.Duration `koanf:"stale_after"`
	CleanupInterval    time.Duration `koanf:"cleanup_interval"`
	RemoveOnDisconnect bool          `koanf:"remove_on_disconnect"`
}

type TypingConfig struct {
	FreshFor   time.Duration `koanf:"fresh_for"`
	MinVisible time.Duration `koanf:"min_visible"`
}

type SyncConfig struct {
	Fallback     string        `koanf:"fallback"`
	ProbeTimeout time.Duration `koanf:"probe_timeout"`
}

type RedisConfig struct {
	Address       string `koanf:"address"`
	Password      string `koanf:"password"`
	DB            int    `koanf:"db"`
	KeyPrefix     string `koanf:"key_prefix"`
	PubSubChannel string `koanf:"pub_sub_channel"`
}

type PollingConfig struct {
	Driver   string        `koanf:"driver"`
	DSN      string        `koanf:"dsn"`
	Interval time.Duration `koanf:"interval"`
}

type TranslationConfig struct {
	APIKey          string        `koanf:"api_key"`
	BaseURL         string        `koanf:"base_url"`
	Model           string        `koanf:"model"`
	PrimaryTimeout  time.Duration `koanf:"primary_timeout"`
	MaxRetries      int           `koanf:"max_retries"`
	RetryBackoff    time.Duration `koanf:"retry_backoff"`
	FallbackTimeout time.Duration `koanf:"fallback_timeout"`
	FallbackMode    string        `koanf:"fallback_mode"`
	RatePerSecond   float64       `koanf:"rate_per_second"`
	LibreURL        string        `koanf:"libre_url"`
	MyMemoryURL     string        `koanf:"mymemory_url"`
	GoogleURL       string        `koanf:"google_url"`
}

type IdentityConfig struct {
	Persistent bool `koanf:"persistent"`
}

type TracingConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`
}

type RabbitMQConfig struct {
	URI string `koanf:"uri"`
}

type MongoConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

// SentryConfig enables panic reporting when DSN is set.
type SentryConfig struct {
	DSN         string `koanf:"dsn"`
	Environment string `koanf:"environment"`
}

// Load reads the YAML file at path (if any), fills in defaults, and applies
// environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := validate.Field("sync.fallback", validate.OneOf(FallbackLocal, FallbackPolling))(c.Sync.Fallback); err != nil {
		return err
	}
	if err := validate.Field("translation.fallback_mode", validate.OneOf(ModeSequential, ModeConcurrent))(c.Translation.FallbackMode); err != nil {
		return err
	}
	if err := validate.Field("polling.driver", validate.OneOf("sqlite", "postgres"))(c.Polling.Driver); err != nil {
		return err
	}
	if c.Presence.StaleAfter <= 0 || c.Typing.FreshFor <= 0 {
		return fmt.Errorf("freshness windows must be positive")
	}
	return nil
}

func applyDefaults(k *koanf.Koanf) {
	// HTTP defaults
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 8080)
	setDefault(k, "http.read_timeout", 10*time.Second)
	setDefault(k, "http.write_timeout", 30*time.Second)
	setDefault(k, "http.allowed_origins", []string{"*"})
	setDefault(k, "http.allowed_headers", []string{"Content-Type", "Authorization", "X-Client-ID"})

	// Rate limiter defaults
	setDefault(k, "rateLimiter.maxRatePerSecond", 10)
	setDefault(k, "rateLimiter.maxBurst", 20)
	setDefault(k, "rateLimiter.cacheTTL", 5*time.Minute)
	setDefault(k, "rateLimiter.sourceHeaderKey", "X-Forwarded-For")

	// Presence and typing
	setDefault(k, "presence.stale_after", 2*time.Minute)
	setDefault(k, "presence.cleanup_interval", time.Minute)
	setDefault(k, "presence.remove_on_disconnect", true)
	setDefault(k, "typing.fresh_for", 10*time.Second)
	setDefault(k, "typing.min_visible", time.Second)

	// Sync backends
	setDefault(k, "sync.fallback", FallbackLocal)
	setDefault(k, "sync.probe_timeout", 3*time.Second)
	setDefault(k, "redis.address", "")
	setDefault(k, "redis.db", 0)
	setDefault(k, "redis.key_prefix", "parley")
	setDefault(k, "redis.pub_sub_channel", "parley:changes")
	setDefault(k, "polling.driver", "sqlite")
	setDefault(k, "polling.dsn", "parley.db")
	setDefault(k, "polling.interval", time.Second)

	// Translation
	setDefault(k, "translation.base_url", "https://api.openai.com")
	setDefault(k, "translation.model", "gpt-4o-mini")
	setDefault(k, "translation.primary_timeout", 15*time.Second)
	setDefault(k, "translation.max_retries", 3)
	setDefault(k, "translation.retry_backoff", time.Second)
	setDefault(k, "translation.fallback_timeout", 5*time.Second)
	setDefault(k, "translation.fallback_mode", ModeSequential)
	setDefault(k, "translation.rate_per_second", 5.0)
	setDefault(k, "translation.libre_url", "https://libretranslate.com")
	setDefault(k, "translation.mymemory_url", "https://api.mymemory.translated.net")
	setDefault(k, "translation.google_url", "https://translate.googleapis.com")

	setDefault(k, "identity.persistent", false)

	setDefault(k, "tracing.enabled", false)
	setDefault(k, "tracing.endpoint", "http://localhost:4318/v1/traces")

	setDefault(k, "mongo.database", "parley")

	setDefault(k, "sentry.environment", "development")
}

func applyEnvOverrides(k *koanf.Koanf) {
	// HTTP config from env
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if readTimeout := env.GetInt("HTTP_READ_TIMEOUT_SECONDS", 0); readTimeout > 0 {
		k.Set("http.read_timeout", time.Duration(readTimeout)*time.Second)
	}
	if writeTimeout := env.GetInt("HTTP_WRITE_TIMEOUT_SECONDS", 0); writeTimeout > 0 {
		k.Set("http.write_timeout", time.Duration(writeTimeout)*time.Second)
	}

	// Rate limiter config from env
	if maxRate := env.GetInt("RATE_LIMIT_MAX_RATE_PER_SECOND", 0); maxRate > 0 {
		k.Set("rateLimiter.maxRatePerSecond", maxRate)
	}
	if maxBurst := env.GetInt("RATE_LIMIT_MAX_BURST", 0); maxBurst > 0 {
		k.Set("rateLimiter.maxBurst", maxBurst)
	}
	if sourceKey := env.GetString("RATE_LIMIT_SOURCE_HEADER_KEY", ""); sourceKey != "" {
		k.Set("rateLimiter.sourceHeaderKey", sourceKey)
	}

	// Backend credentials: absence selects the local transports.
	if addr := env.GetString("REDIS_ADDRESS", ""); addr != "" {
		k.Set("redis.address", addr)
	}
	if password := env.GetString("REDIS_PASSWORD", ""); password != "" {
		k.Set("redis.password", password)
	}
	if fallback := env.GetString("SYNC_FALLBACK", ""); fallback != "" {
		k.Set("sync.fallback", fallback)
	}
	if dsn := env.GetString("POLLING_DSN", ""); dsn != "" {
		k.Set("polling.dsn", dsn)
	}
	if driver := env.GetString("POLLING_DRIVER", ""); driver != "" {
		k.Set("polling.driver", driver)
	}

	// Translation: absence of a key selects the fallback chain.
	if key := env.GetString("OPENAI_API_KEY", ""); key != "" {
		k.Set("translation.api_key", key)
	}
	if baseURL := env.GetString("OPENAI_BASE_URL", ""); baseURL != "" {
		k.Set("translation.base_url", baseURL)
	}
	if mode := env.GetString("TRANSLATION_FALLBACK_MODE", ""); mode != "" {
		k.Set("translation.fallback_mode", mode)
	}

	if env.GetBool("IDENTITY_PERSISTENT", false) {
		k.Set("identity.persistent", true)
	}

	if env.GetBool("TRACING_ENABLED", false) {
		k.Set("tracing.enabled", true)
	}
	if endpoint := env.GetString("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ""); endpoint != "" {
		k.Set("tracing.endpoint", endpoint)
	}

	if uri := env.GetString("RABBITMQ_URI", ""); uri != "" {
		k.Set("rabbitmq.uri", uri)
	}
	if uri := env.GetString("MONGODB_URI", ""); uri != "" {
		k.Set("mongo.uri", uri)
	}
	if database := env.GetString("MONGODB_DATABASE", ""); database != "" {
		k.Set("mongo.database", database)
	}

	if dsn := env.GetString("SENTRY_DSN", ""); dsn != "" {
		k.Set("sentry.dsn", dsn)
	}
	if environment := env.GetString("SENTRY_ENVIRONMENT", ""); environment != "" {
		k.Set("sentry.environment", environment)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value interface{}) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
