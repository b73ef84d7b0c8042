package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable consumed by the service.
	EnvPrefix = "COMMITFORGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	OpenAI       OpenAIConfig
	Frontend     FrontendConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Stripe.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COMMITFORGE_APP_ENV" required:"true"`
	Port         string `envconfig:"COMMITFORGE_APP_PORT" default:"3001"`
	LogLevel     string `envconfig:"COMMITFORGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COMMITFORGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"COMMITFORGE_DB_DSN" required:"true"`

	MaxOpenConns    int           `envconfig:"COMMITFORGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COMMITFORGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COMMITFORGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COMMITFORGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COMMITFORGE_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"COMMITFORGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COMMITFORGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COMMITFORGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COMMITFORGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COMMITFORGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"COMMITFORGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COMMITFORGE_JWT_ISSUER" default:"commitforge"`
	ExpirationMinutes int    `envconfig:"COMMITFORGE_JWT_EXPIRATION_MINUTES" default:"10080"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"COMMITFORGE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"COMMITFORGE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"COMMITFORGE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"COMMITFORGE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"COMMITFORGE_ARGON_KEY_LEN" default:"32"`
}

type RateLimitConfig struct {
	Window   time.Duration `envconfig:"COMMITFORGE_RATE_LIMIT_WINDOW" default:"15m"`
	Requests int64         `envconfig:"COMMITFORGE_RATE_LIMIT_REQUESTS" default:"100"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"COMMITFORGE_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey         string        `envconfig:"COMMITFORGE_STRIPE_API_KEY" required:"true"`
	WebhookSecret  string        `envconfig:"COMMITFORGE_STRIPE_WEBHOOK_SECRET" required:"true"`
	IdempotencyTTL time.Duration `envconfig:"COMMITFORGE_STRIPE_IDEMPOTENCY_TTL" default:"72h"`

	PriceIndividual string `envconfig:"COMMITFORGE_STRIPE_PRICE_INDIVIDUAL" required:"true"`
	PriceTeam       string `envconfig:"COMMITFORGE_STRIPE_PRICE_TEAM" required:"true"`
	PriceEnterprise string `envconfig:"COMMITFORGE_STRIPE_PRICE_ENTERPRISE" required:"true"`

	TrialDays int64 `envconfig:"COMMITFORGE_STRIPE_TRIAL_DAYS" default:"14"`
}

func (s StripeConfig) validate() error {
	prices := map[string]string{
		s.PriceIndividual: "individual",
		s.PriceTeam:       "team",
		s.PriceEnterprise: "enterprise",
	}
	if len(prices) != 3 {
		return fmt.Errorf("stripe price ids must be distinct")
	}
	return nil
}

type OpenAIConfig struct {
	APIKey    string        `envconfig:"COMMITFORGE_OPENAI_API_KEY" required:"true"`
	Model     string        `envconfig:"COMMITFORGE_OPENAI_MODEL" default:"gpt-4-turbo-preview"`
	BaseURL   string        `envconfig:"COMMITFORGE_OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	Timeout   time.Duration `envconfig:"COMMITFORGE_OPENAI_TIMEOUT" default:"30s"`
	MaxTries  uint64        `envconfig:"COMMITFORGE_OPENAI_MAX_TRIES" default:"3"`
	MaxTokens int           `envconfig:"COMMITFORGE_OPENAI_MAX_TOKENS" default:"200"`
}

type FrontendConfig struct {
	URL string `envconfig:"COMMITFORGE_FRONTEND_URL" default:"http://localhost:3000"`
}
