// Package config loads server configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration shared by all server binaries.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	TCP      TCPConfig      `mapstructure:"tcp"`
	UDP      UDPConfig      `mapstructure:"udp"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Host               string   `mapstructure:"host"`
	Port               int      `mapstructure:"port"`
	CORSAllowOrigins   []string `mapstructure:"cors_allow_origins"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_requests_per_minute"`
	MaxRequestSizeMB   int64    `mapstructure:"max_request_size_mb"`
}

// GRPCConfig configures the gateway's gRPC listener.
type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// TCPConfig configures the TCP progress bus. Addr is the data listener,
// AdminAddr the HTTP trigger listener; TriggerURL is what the gateway
// POSTs events to.
type TCPConfig struct {
	Addr       string `mapstructure:"addr"`
	AdminAddr  string `mapstructure:"admin_addr"`
	TriggerURL string `mapstructure:"trigger_url"`
}

// UDPConfig configures the UDP notification bus.
type UDPConfig struct {
	Addr       string `mapstructure:"addr"`
	AdminAddr  string `mapstructure:"admin_addr"`
	TriggerURL string `mapstructure:"trigger_url"`
}

// JWTConfig configures bearer-token signing.
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// DatabaseConfig selects the store driver: "sqlite" (default) or "postgres".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig configures the optional rating-stats cache.
// An empty Addr disables caching.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig mirrors pkg/logger.Config.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads the YAML file at path (optional) and applies env overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_allow_origins", []string{"*"})
	v.SetDefault("server.rate_limit_requests_per_minute", 120)
	v.SetDefault("server.max_request_size_mb", 2)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 9100)
	v.SetDefault("tcp.addr", "127.0.0.1:9000")
	v.SetDefault("tcp.admin_addr", "127.0.0.1:9001")
	v.SetDefault("udp.addr", "127.0.0.1:9002")
	v.SetDefault("udp.admin_addr", "127.0.0.1:9003")
	v.SetDefault("jwt.secret", "dev-secret-change-me")
	v.SetDefault("jwt.issuer", "mangahub")
	v.SetDefault("jwt.expiration", 24*time.Hour)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "mangahub.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			// Missing file is fine: defaults + env carry the day.
		}
	}

	// Environment overrides use the documented variable names.
	bindings := map[string]string{
		"server.port":                           "PORT",
		"server.cors_allow_origins":             "CORS_ALLOW_ORIGINS",
		"server.rate_limit_requests_per_minute": "RATE_LIMIT_REQUESTS_PER_MINUTE",
		"server.max_request_size_mb":            "MAX_REQUEST_SIZE_MB",
		"tcp.addr":                              "TCP_SERVER_ADDR",
		"tcp.admin_addr":                        "TCP_ADMIN_ADDR",
		"tcp.trigger_url":                       "TCP_TRIGGER_URL",
		"udp.addr":                              "UDP_SERVER_ADDR",
		"udp.admin_addr":                        "UDP_ADMIN_ADDR",
		"udp.trigger_url":                       "UDP_TRIGGER_URL",
		"jwt.secret":                            "JWT_SECRET",
		"database.driver":                       "DATABASE_DRIVER",
		"database.dsn":                          "DATABASE_URL",
		"redis.addr":                            "REDIS_ADDR",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// CORS_ALLOW_ORIGINS is a comma-separated list when set via env.
	if len(cfg.Server.CORSAllowOrigins) == 1 && strings.Contains(cfg.Server.CORSAllowOrigins[0], ",") {
		parts := strings.Split(cfg.Server.CORSAllowOrigins[0], ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		cfg.Server.CORSAllowOrigins = origins
	}

	// Trigger URLs default to the admin listeners.
	if cfg.TCP.TriggerURL == "" {
		cfg.TCP.TriggerURL = "http://" + cfg.TCP.AdminAddr + "/trigger"
	}
	if cfg.UDP.TriggerURL == "" {
		cfg.UDP.TriggerURL = "http://" + cfg.UDP.AdminAddr + "/trigger"
	}

	return &cfg, nil
}
