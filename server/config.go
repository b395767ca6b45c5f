package server

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lvillar/certfill/registry"
)

// Environment variables that override the config file.
const (
	EnvListen    = "CERTFILL_LISTEN"
	EnvJWTSecret = "CERTFILL_JWT_SECRET"
)

// Config is the service configuration, usually config/certfill.json.
type Config struct {
	AppName     string        `json:"app_name"`
	Listen      string        `json:"listen"`       // ip:port
	TemplateDir string        `json:"template_dir"` // holds 0.pdf, 1.pdf and 2.pdf
	Fonts       []string      `json:"fonts"`        // font candidates, e.g. "times-bold"
	SQL         registry.Conf `json:"sql"`
	Redis       *CacheConf    `json:"redis"` // nil disables the certificate cache

	JWTSecret          string `json:"jwt_secret"` // empty disables tokens
	TokenTTLSeconds    int    `json:"token_ttl_sec"`
	ShutdownTimeoutSec int    `json:"shutdown_timeout_sec"`
}

// CacheConf describes the Redis certificate cache.
type CacheConf struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	PW     string `json:"pw"`
	DB     int    `json:"db"`
	TTLSec int    `json:"ttl_sec"`
}

// LoadConfig reads a JSON config file, applies environment overrides and
// fills in defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("server: parsing %s: %w", path, err)
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.JWTSecret = v
	}
	c.setDefaults()
	if c.TemplateDir == "" {
		return nil, fmt.Errorf("server: %s: template_dir is required", path)
	}
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.AppName == "" {
		c.AppName = "certfill"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:3000"
	}
	if c.TokenTTLSeconds <= 0 {
		c.TokenTTLSeconds = 3600
	}
	if c.ShutdownTimeoutSec <= 0 {
		c.ShutdownTimeoutSec = 10
	}
	if c.Redis != nil && c.Redis.TTLSec <= 0 {
		c.Redis.TTLSec = 24 * 3600
	}
}

// TokenTTL returns the access token lifetime.
func (c *Config) TokenTTL() time.Duration { return time.Duration(c.TokenTTLSeconds) * time.Second }

// ShutdownTimeout returns how long in-flight requests get on shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}
