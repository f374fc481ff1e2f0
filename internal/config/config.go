package config

import (
	"errors"
	"strings"
	"time"
)

type Config struct {
	ServerPort       int    `json:"server_port"`
	BaseDomain       string `json:"base_domain"`
	JWTSecretKey     string `json:"jwt_secret_key"`
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	DefaultRateLimit int `json:"default_rate_limit"`
	GlobalRateLimit  int `json:"global_rate_limit"`

	// Directory lookups made while resolving a tenant and blacklist lookups
	// made while validating a token are bounded by these.
	DirectoryLookupTimeout time.Duration
	DirectoryCacheTTL      time.Duration
	BlacklistTimeout       time.Duration

	LoginMaxFailures   int
	LoginFailureWindow time.Duration
	LoginLockout       time.Duration

	ProvisionMaxAttempts int
	ProvisionBaseBackoff time.Duration
	ProvisionMaxBackoff  time.Duration
}

var ErrMissingJWTSecret = errors.New("JWT_SECRET_KEY is required")

func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:       getEnvIntWithDefault("SERVER_PORT", 10000),
		BaseDomain:       strings.ToLower(getEnvWithDefault("BASE_DOMAIN", "")),
		JWTSecretKey:     getEnvWithDefault("JWT_SECRET_KEY", ""),
		AccessTokenTTL:   getEnvDurationWithDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:  getEnvDurationWithDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		DefaultRateLimit: getEnvIntWithDefault("DEFAULT_RATE_LIMIT", 1000), // per tenant per minute
		GlobalRateLimit:  getEnvIntWithDefault("GLOBAL_RATE_LIMIT", 10000), // per IP per minute

		DirectoryLookupTimeout: getEnvDurationWithDefault("DIRECTORY_LOOKUP_TIMEOUT", 2*time.Second),
		DirectoryCacheTTL:      getEnvDurationWithDefault("DIRECTORY_CACHE_TTL", 30*time.Second),
		BlacklistTimeout:       getEnvDurationWithDefault("BLACKLIST_TIMEOUT", 500*time.Millisecond),

		LoginMaxFailures:   getEnvIntWithDefault("LOGIN_MAX_FAILURES", 5),
		LoginFailureWindow: getEnvDurationWithDefault("LOGIN_FAILURE_WINDOW", 15*time.Minute),
		LoginLockout:       getEnvDurationWithDefault("LOGIN_LOCKOUT", 15*time.Minute),

		ProvisionMaxAttempts: getEnvIntWithDefault("PROVISION_MAX_ATTEMPTS", 5),
		ProvisionBaseBackoff: getEnvDurationWithDefault("PROVISION_BASE_BACKOFF", 2*time.Second),
		ProvisionMaxBackoff:  getEnvDurationWithDefault("PROVISION_MAX_BACKOFF", time.Minute),
	}

	if cfg.JWTSecretKey == "" {
		return nil, ErrMissingJWTSecret
	}

	return cfg, nil
}
