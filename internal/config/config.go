package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT" env-default:"json"` // json|console
	Sampling bool   `yaml:"sampling" env:"LOG_SAMPLING"`                // enable sampling in prod
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"HTTP_REQUEST_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	FrontendURL     string        `yaml:"frontend_url" env:"FRONTEND_URL" env-default:"http://localhost:5173"`
	// Keepalive is the SSE comment interval on the flag stream; zero disables it.
	Keepalive time.Duration `yaml:"keepalive" env:"SSE_KEEPALIVE" env-default:"25s"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns" env:"DATABASE_MAX_CONNS" env-default:"10"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"1h"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"JWT_TTL" env-default:"24h"`
}

type PayUConfig struct {
	Env        string `yaml:"env" env:"PAYU_ENV" env-default:"test"` // live|test
	Key        string `yaml:"key" env:"PAYU_KEY"`
	Salt       string `yaml:"salt" env:"PAYU_SALT"`
	SuccessURL string `yaml:"success_url" env:"PAYU_SUCCESS_URL" env-default:"http://localhost:5173/payment-success"`
	FailureURL string `yaml:"failure_url" env:"PAYU_FAILURE_URL" env-default:"http://localhost:5173/payment-failure"`
	// DedupeCallbacks grants premium at most once per txnid.
	DedupeCallbacks bool `yaml:"dedupe_callbacks" env:"PAYU_DEDUPE_CALLBACKS" env-default:"true"`
	// VerifyRPS and VerifyBurst bound the public verify endpoint per client IP.
	VerifyRPS   float64 `yaml:"verify_rps" env:"PAYU_VERIFY_RPS" env-default:"2"`
	VerifyBurst int     `yaml:"verify_burst" env:"PAYU_VERIFY_BURST" env-default:"5"`
}

// Live reports whether checkout forms go to the production gateway.
func (p PayUConfig) Live() bool { return strings.ToLower(p.Env) == "live" }

type AIConfig struct {
	AnthropicKey     string  `yaml:"anthropic_key" env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string  `yaml:"anthropic_base_url" env:"ANTHROPIC_BASE_URL" env-default:"https://api.anthropic.com/v1/messages"`
	ChatModel        string  `yaml:"chat_model" env:"ANTHROPIC_MODEL" env-default:"claude-3-5-sonnet-20240620"`
	MaxTokens        int     `yaml:"max_tokens" env:"CHAT_MAX_TOKENS" env-default:"600"`
	Temperature      float64 `yaml:"temperature" env:"CHAT_TEMPERATURE" env-default:"0.6"`
	OpenAIKey        string  `yaml:"openai_key" env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string  `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	GeminiKey        string  `yaml:"gemini_key" env:"GEMINI_API_KEY"`
	GeminiURL        string  `yaml:"gemini_url" env:"GEMINI_BASE_URL"`
	ConcurrentLimit  int     `yaml:"concurrent_limit" env:"AI_CONCURRENT_LIMIT" env-default:"16"` // max concurrent AI calls
	// RateLimit is the number of chat calls a user may make per RateWindow.
	RateLimit  int           `yaml:"rate_limit" env:"CHAT_RATE_LIMIT" env-default:"20"`
	RateWindow time.Duration `yaml:"rate_window" env:"CHAT_RATE_WINDOW" env-default:"1m"`
}

type SchedulerConfig struct {
	PremiumExpiryInterval time.Duration `yaml:"premium_expiry_interval" env:"PREMIUM_EXPIRY_INTERVAL" env-default:"1h"`
	PoolStatsInterval     time.Duration `yaml:"pool_stats_interval" env:"POOL_STATS_INTERVAL" env-default:"15s"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	PayU      PayUConfig      `yaml:"payu"`
	AI        AIConfig        `yaml:"ai"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (if it exists) and applies environment
// overrides. PayU and AI secrets are optional here; handlers report them missing.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if _, statErr := os.Stat(path); statErr == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
	}

	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	cfg.HTTP.FrontendURL = strings.TrimRight(cfg.HTTP.FrontendURL, "/")

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
