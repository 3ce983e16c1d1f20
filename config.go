package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/synccord/authcore/password"
	"github.com/synccord/authcore/revocation"
)

// Config is the full engine configuration. Instances are cloned by the
// Builder and treated as immutable after Build.
type Config struct {
	// ServiceName is embedded as the token issuer and the TOTP
	// provisioning issuer.
	ServiceName string

	Token    TokenConfig
	Password password.Config
	TOTP     TOTPConfig
	Account  AccountConfig
	Cache    CacheConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// TokenConfig holds signing material and token validity parameters.
type TokenConfig struct {
	// Secret is the shared HMAC signing key. Required.
	Secret []byte
	// TTL bounds token validity; 15 minutes when unset.
	TTL time.Duration
	// Leeway tolerates clock drift during expiry checks.
	Leeway time.Duration
}

// TOTPConfig holds the TOTP verification profile.
type TOTPConfig struct {
	Period uint
	Digits uint
	Skew   uint
}

// AccountConfig holds account mutation policy.
type AccountConfig struct {
	// MinPasswordLength applies to account creation and password change.
	MinPasswordLength int
}

// CacheConfig bounds the in-memory revocation cache. Ignored when a shared
// cache is supplied through the Builder.
type CacheConfig struct {
	Capacity int
	// TTL defaults to the token TTL: a revocation only needs to outlive the
	// token it kills.
	TTL time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking the request path when the
	// buffer is saturated. Dropped counts are observable via AuditDropped.
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		ServiceName: "Synccord",
		Token: TokenConfig{
			TTL: 15 * time.Minute,
		},
		Password: password.DefaultConfig(),
		TOTP: TOTPConfig{
			Period: 30,
			Digits: 6,
			Skew:   1,
		},
		Account: AccountConfig{
			MinPasswordLength: 8,
		},
		Cache: CacheConfig{
			Capacity: revocation.DefaultCapacity,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if len(c.Token.Secret) < 16 {
		return errors.New("token secret must be at least 16 bytes")
	}
	if c.Token.TTL <= 0 {
		return errors.New("token TTL must be positive")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("invalid leeway configuration")
	}
	if c.ServiceName == "" {
		return errors.New("service name must be set")
	}
	if c.Account.MinPasswordLength < 8 {
		return errors.New("minimum password length must be at least 8")
	}
	if c.Cache.Capacity < 0 {
		return errors.New("cache capacity must not be negative")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = append([]byte(nil), cfg.Token.Secret...)
	return out
}

// envConfig holds raw environment values for ConfigFromEnv.
type envConfig struct {
	ServiceName   string        `env:"AUTHCORE_SERVICE_NAME"`
	TokenSecret   string        `env:"AUTHCORE_TOKEN_SECRET"`
	TokenTTL      time.Duration `env:"AUTHCORE_TOKEN_TTL"`
	TokenLeeway   time.Duration `env:"AUTHCORE_TOKEN_LEEWAY"`
	CacheCapacity int           `env:"AUTHCORE_CACHE_CAPACITY"`
	AuditEnabled  bool          `env:"AUTHCORE_AUDIT_ENABLED" envDefault:"true"`
}

// ConfigFromEnv returns the default configuration overridden by AUTHCORE_*
// environment variables. Secrets enter through the environment rather than
// ambient process state so their lifetime is explicit.
func ConfigFromEnv() (Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := defaultConfig()
	if raw.ServiceName != "" {
		cfg.ServiceName = raw.ServiceName
	}
	if raw.TokenSecret != "" {
		cfg.Token.Secret = []byte(raw.TokenSecret)
	}
	if raw.TokenTTL > 0 {
		cfg.Token.TTL = raw.TokenTTL
	}
	if raw.TokenLeeway > 0 {
		cfg.Token.Leeway = raw.TokenLeeway
	}
	if raw.CacheCapacity > 0 {
		cfg.Cache.Capacity = raw.CacheCapacity
	}
	cfg.Audit.Enabled = raw.AuditEnabled

	return cfg, nil
}
