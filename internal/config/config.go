package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default configuration file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                       string `yaml:"port"`
	LogLevel                   string `yaml:"logLevel"`
	DatabaseURL                string `yaml:"databaseURL"`
	RedisAddr                  string `yaml:"redisAddr"`
	RedisPassword              string `yaml:"redisPassword"`
	IdentityJWKSURL            string `yaml:"identityJwksURL"`
	JWTIssuer                  string `yaml:"jwtIssuer"`
	JWTAudience                string `yaml:"jwtAudience"`
	JWTLeeway                  string `yaml:"jwtLeeway"`
	CatalogServiceURL          string `yaml:"catalogServiceURL"`
	CheckoutServiceURL         string `yaml:"checkoutServiceURL"`
	CheckoutAPIKey             string `yaml:"checkoutAPIKey"`
	CheckoutSuccessURL         string `yaml:"checkoutSuccessURL"`
	CheckoutCancelURL          string `yaml:"checkoutCancelURL"`
	Currency                   string   `yaml:"currency"`
	TrustedProxies             []string `yaml:"trustedProxies"`
	OrderRateLimitPerMinute    int    `yaml:"orderRateLimitPerMinute"`
	CheckoutRateLimitPerMinute int    `yaml:"checkoutRateLimitPerMinute"`
	ReviewRateLimitPerMinute   int    `yaml:"reviewRateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("IDENTITY_JWKS_URL"); v != "" {
		cfg.IdentityJWKSURL = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		cfg.JWTLeeway = v
	}
	if v := os.Getenv("CATALOG_SERVICE_URL"); v != "" {
		cfg.CatalogServiceURL = v
	}
	if v := os.Getenv("CHECKOUT_SERVICE_URL"); v != "" {
		cfg.CheckoutServiceURL = v
	}
	if v := os.Getenv("CHECKOUT_API_KEY"); v != "" {
		cfg.CheckoutAPIKey = v
	}
	if v := os.Getenv("CHECKOUT_SUCCESS_URL"); v != "" {
		cfg.CheckoutSuccessURL = v
	}
	if v := os.Getenv("CHECKOUT_CANCEL_URL"); v != "" {
		cfg.CheckoutCancelURL = v
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		parts := strings.Split(v, ",")
		cfg.TrustedProxies = cfg.TrustedProxies[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cfg.TrustedProxies = append(cfg.TrustedProxies, p)
			}
		}
	}
	if v := os.Getenv("ORDER_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OrderRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("CHECKOUT_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CheckoutRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("REVIEW_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReviewRateLimitPerMinute = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.IdentityJWKSURL) == "" {
		return errors.New("config: identityJwksURL is required (set in config.yaml or IDENTITY_JWKS_URL)")
	}
	if strings.TrimSpace(cfg.CatalogServiceURL) == "" {
		return errors.New("config: catalogServiceURL is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.CheckoutServiceURL) == "" {
		return errors.New("config: checkoutServiceURL is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for distributed rate limiting")
	}
	if cfg.OrderRateLimitPerMinute < 0 || cfg.CheckoutRateLimitPerMinute < 0 || cfg.ReviewRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	return nil
}

// ParseJWTLeeway parses the optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	if leewayStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(leewayStr)
	if err != nil {
		return 0, fmt.Errorf("invalid jwtLeeway duration: %w", err)
	}
	return dur, nil
}
