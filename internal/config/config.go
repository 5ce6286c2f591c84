// Package config loads service settings from defaults, an optional YAML file and
// STOREFRONT_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const envPrefix = "STOREFRONT"

// DevToken is accepted as the bearer token of subject "dev" when env is "dev" and
// auth.tokens is empty. Outside dev an empty token list leaves every write unauthorized.
const DevToken = "storefront-dev-token"

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	ServiceName string         `mapstructure:"service_name"`
	Env         string         `mapstructure:"env"`
	HTTP        HTTPConfig     `mapstructure:"http"`
	Store       StoreConfig    `mapstructure:"store"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Pricing     PricingConfig  `mapstructure:"pricing"`
	Discount    DiscountConfig `mapstructure:"discount"`
	Catalog     CatalogConfig  `mapstructure:"catalog"`
	Payment     PaymentConfig  `mapstructure:"payment"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Tracing     TracingConfig  `mapstructure:"tracing"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StoreConfig struct {
	// Backend is "memory" or "redis".
	Backend    string        `mapstructure:"backend"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PricingConfig keeps money as strings so values like 0.1 are read exactly.
type PricingConfig struct {
	FreeShippingThreshold string `mapstructure:"free_shipping_threshold"`
	DeliveryFee           string `mapstructure:"delivery_fee"`
	Currency              string `mapstructure:"currency"`
}

type DiscountConfig struct {
	// Codes are "CODE=percent" entries. Codes are case-sensitive.
	Codes []string `mapstructure:"codes"`
}

type CatalogConfig struct {
	// BaseURL selects the remote product API; empty uses the built-in catalog.
	BaseURL         string        `mapstructure:"base_url"`
	PriceMultiplier string        `mapstructure:"price_multiplier"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type PaymentConfig struct {
	// Mode is "simulated" or "http".
	Mode        string        `mapstructure:"mode"`
	BaseURL     string        `mapstructure:"base_url"`
	SuccessRate float64       `mapstructure:"success_rate"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	// Tokens are "subject=token" entries or bare tokens. Cart writes and checkout need
	// one of them as a bearer token.
	Tokens []string `mapstructure:"tokens"`
	// DevToken reports that DevToken was added because nothing was configured.
	DevToken bool `mapstructure:"-"`
}

type TracingConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "storefront")
	v.SetDefault("env", "dev")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.session_ttl", 30*time.Minute)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("pricing.free_shipping_threshold", "500")
	v.SetDefault("pricing.delivery_fee", "50")
	v.SetDefault("pricing.currency", "INR")
	v.SetDefault("discount.codes", []string{"DHRUV=10", "DEV=5", "CARTIFYECOMMERCE=15", "NEWUSER=10"})
	v.SetDefault("catalog.base_url", "")
	v.SetDefault("catalog.price_multiplier", "1")
	v.SetDefault("catalog.timeout", 5*time.Second)
	v.SetDefault("payment.mode", "simulated")
	v.SetDefault("payment.base_url", "")
	v.SetDefault("payment.success_rate", 0.7)
	v.SetDefault("payment.timeout", 15*time.Second)
	v.SetDefault("auth.tokens", []string{})
	v.SetDefault("tracing.jaeger_endpoint", "")
}

// Load reads configuration. path may be empty, in which case only defaults and the
// environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	// comma-separated lists from the environment arrive as a single element
	cfg.Discount.Codes = splitList(cfg.Discount.Codes)
	cfg.Auth.Tokens = splitList(cfg.Auth.Tokens)
	if len(cfg.Auth.Tokens) == 0 && cfg.Env == "dev" {
		cfg.Auth.Tokens = []string{"dev=" + DevToken}
		cfg.Auth.DevToken = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: store.backend %q", ErrInvalid, c.Store.Backend)
	}
	switch c.Payment.Mode {
	case "simulated":
	case "http":
		if c.Payment.BaseURL == "" {
			return fmt.Errorf("%w: payment.base_url is required in http mode", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: payment.mode %q", ErrInvalid, c.Payment.Mode)
	}
	if c.Payment.SuccessRate < 0 || c.Payment.SuccessRate > 1 {
		return fmt.Errorf("%w: payment.success_rate must be within [0, 1]", ErrInvalid)
	}
	if _, _, err := c.Pricing.Amounts(); err != nil {
		return err
	}
	if _, err := c.Catalog.Multiplier(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Pricing.Currency) == "" {
		return fmt.Errorf("%w: pricing.currency is empty", ErrInvalid)
	}
	return nil
}

// Amounts returns the free-shipping threshold and the delivery fee.
func (p PricingConfig) Amounts() (threshold, fee decimal.Decimal, err error) {
	threshold, err = decimal.NewFromString(p.FreeShippingThreshold)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: pricing.free_shipping_threshold: %w", ErrInvalid, err)
	}
	fee, err = decimal.NewFromString(p.DeliveryFee)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: pricing.delivery_fee: %w", ErrInvalid, err)
	}
	if threshold.IsNegative() || fee.IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: pricing amounts must not be negative", ErrInvalid)
	}
	return threshold, fee, nil
}

func (c CatalogConfig) Multiplier() (decimal.Decimal, error) {
	m, err := decimal.NewFromString(c.PriceMultiplier)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: catalog.price_multiplier: %w", ErrInvalid, err)
	}
	if !m.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: catalog.price_multiplier must be positive", ErrInvalid)
	}
	return m, nil
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
