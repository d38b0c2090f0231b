// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relay service.
package server

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

const (
	defaultPort            = "4000"
	defaultMaxMessageSize  = 64 * 1024
	defaultSendBufferSize  = 256
	defaultRateLimitBurst  = 20
	defaultRefillInterval  = time.Second
	defaultPongWait        = 60 * time.Second
	defaultWriteWait       = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultLogLevel        = "INFO"
)

// RateLimitConfig defines the parameters for per-connection event rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Addr            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	SendBufferSize  int
	RateLimit       RateLimitConfig
	PongWait        time.Duration
	PingPeriod      time.Duration
	WriteWait       time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

// environment mirrors the variables read at startup.
type environment struct {
	Port                    string        `env:"PORT,default=4000"`
	AllowedOrigins          string        `env:"ALLOWED_ORIGINS,default=*"`
	MaxMessageSize          int           `env:"MAX_MESSAGE_SIZE,default=65536"`
	SendBufferSize          int           `env:"SEND_BUFFER_SIZE,default=256"`
	RateLimitBurst          int           `env:"RATE_LIMIT_BURST,default=20"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	PongWait                time.Duration `env:"PONG_WAIT,default=60s"`
	WriteWait               time.Duration `env:"WRITE_WAIT,default=10s"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	LogLevel                string        `env:"LOG_LEVEL,default=INFO"`
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := sanitizeConfig(Config{})
	return &cfg
}

// LoadConfig reads the configuration from environment variables. Values that
// cannot be parsed are an error; missing or non-positive values fall back to
// defaults.
func LoadConfig() (*Config, error) {
	var e environment
	if _, err := env.UnmarshalFromEnviron(&e); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := sanitizeConfig(Config{
		Addr:           listenAddr(e.Port),
		AllowedOrigins: parseOrigins(e.AllowedOrigins),
		MaxMessageSize: int64(e.MaxMessageSize),
		SendBufferSize: e.SendBufferSize,
		RateLimit: RateLimitConfig{
			Burst:          e.RateLimitBurst,
			RefillInterval: e.RateLimitRefillInterval,
		},
		PongWait:        e.PongWait,
		WriteWait:       e.WriteWait,
		ShutdownTimeout: e.ShutdownTimeout,
		LogLevel:        e.LogLevel,
	})
	return &cfg, nil
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Addr == "" {
		cfg.Addr = listenAddr(defaultPort)
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultRateLimitBurst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaultRefillInterval
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	// Pings must go out before the peer's read deadline expires.
	cfg.PingPeriod = cfg.PongWait * 9 / 10
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = defaultLogLevel
	}
	return cfg
}

// listenAddr accepts either a bare port or a full host:port.
func listenAddr(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return ""
	}
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func parseOrigins(origins string) []string {
	var out []string
	for _, part := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
