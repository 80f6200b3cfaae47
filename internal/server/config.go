// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the ratechat service.
package server

import (
	"strings"
	"sync"
	"time"

	env "github.com/Netflix/go-env"

	"github.com/mkovalchuk/ratechat/internal/exchange"
)

// RateLimitConfig defines the parameters for per-connection message rate
// limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration, covering the transport, the
// exchange rate API client, and the audit log location.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	RateLimit       RateLimitConfig
	ExchangeAPIURL  string
	ExchangeTimeout time.Duration
	AuditDir        string
	AuditFile       string
	LogLevel        string
}

// envConfig maps environment variables onto the raw configuration values.
type envConfig struct {
	Port            string        `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=512"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST,default=5"`
	RateLimitRefill time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	ExchangeAPIURL  string        `env:"EXCHANGE_API_URL"`
	ExchangeTimeout time.Duration `env:"EXCHANGE_HTTP_TIMEOUT,default=30s"`
	AuditDir        string        `env:"AUDIT_DIR,default=storage"`
	AuditFile       string        `env:"AUDIT_FILE,default=data-log.txt"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port:           ":8080",
		AllowedOrigins: []string{"http://localhost:8080"},
		MaxMessageSize: 512,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		ExchangeAPIURL:  exchange.DefaultBaseURL,
		ExchangeTimeout: 30 * time.Second,
		AuditDir:        "storage",
		AuditFile:       "data-log.txt",
		LogLevel:        "INFO",
	}
}

func sanitizeConfig(cfg Config) Config {
	defaults := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = defaults.Port
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaults.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaults.RateLimit.RefillInterval
	}
	if cfg.ExchangeAPIURL == "" {
		cfg.ExchangeAPIURL = defaults.ExchangeAPIURL
	}
	if cfg.ExchangeTimeout <= 0 {
		cfg.ExchangeTimeout = defaults.ExchangeTimeout
	}
	if cfg.AuditDir == "" {
		cfg.AuditDir = defaults.AuditDir
	}
	if cfg.AuditFile == "" {
		cfg.AuditFile = defaults.AuditFile
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to
// defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		sanitizeConfig(defaultConfig())
		return
	}

	sanitized := *cfg
	sanitized.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config populated with defaults for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv builds a Config from environment variables, falling back
// to defaults for anything unset or unparseable.
func NewConfigFromEnv() (*Config, error) {
	var ec envConfig
	if _, err := env.UnmarshalFromEnviron(&ec); err != nil {
		return nil, err
	}

	cfg := Config{
		Port:           ec.Port,
		AllowedOrigins: splitOrigins(ec.AllowedOrigins),
		MaxMessageSize: ec.MaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          ec.RateLimitBurst,
			RefillInterval: ec.RateLimitRefill,
		},
		ExchangeAPIURL:  ec.ExchangeAPIURL,
		ExchangeTimeout: ec.ExchangeTimeout,
		AuditDir:        ec.AuditDir,
		AuditFile:       ec.AuditFile,
		LogLevel:        ec.LogLevel,
	}
	return &cfg, nil
}

func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
