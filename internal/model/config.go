package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all akita settings
type Config struct {
	API          APIConfig          `yaml:"api" mapstructure:"api"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Claim        ClaimConfig        `yaml:"claim" mapstructure:"claim"`
	Session      SessionConfig      `yaml:"session" mapstructure:"session"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// APIConfig points at the GraphQL backend
type APIConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"required,url"`
}

// HTTPConfig controls the HTTP transport
type HTTPConfig struct {
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	UserAgent   string        `yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
	MaxRetries  int           `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=1,lte=10"`
	InsecureTLS bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy   string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy" validate:"omitempty,url"`
	HTTPSProxy  string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy" validate:"omitempty,url"`
	NoProxy     string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig controls the local claim cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl" validate:"gte=0"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl" validate:"gte=0"`
}

// ClaimConfig controls the claim workflow
type ClaimConfig struct {
	SourceID        string        `yaml:"source_id" mapstructure:"source_id" validate:"required"`
	PollInterval    time.Duration `yaml:"poll_interval" mapstructure:"poll_interval" validate:"gte=10s"`
	ClaimableAgency string        `yaml:"claimable_agency" mapstructure:"claimable_agency" validate:"required"`
}

// SessionConfig carries the signed-in identity. Tokens are best kept in the
// environment rather than the config file.
type SessionConfig struct {
	Token string `yaml:"token,omitempty" mapstructure:"token"`
	Orcid string `yaml:"orcid,omitempty" mapstructure:"orcid"`
	Name  string `yaml:"name,omitempty" mapstructure:"name"`
}

// ConcurrencyConfig controls batch processing
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers" validate:"gte=1"`
}

// RateLimitingConfig limits requests per API host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size" validate:"gte=1"`
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	Pretty  bool `yaml:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Endpoint: "https://api.datacite.org/graphql",
		},
		HTTP: HTTPConfig{
			Timeout:    30 * time.Second,
			UserAgent:  "akita/0.4 (+https://github.com/datacite/akita)",
			MaxRetries: 3,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".akita/cache",
			MemoryTTL: 5 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Claim: ClaimConfig{
			SourceID:        SourceOrcidSearch,
			PollInterval:    10 * time.Second,
			ClaimableAgency: ClaimableAgency,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 5,
			BurstSize:         5,
		},
		Output: OutputConfig{
			Pretty: true,
		},
	}
}

var configValidate = validator.New()

// Validate checks the configuration for missing or out-of-range values
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
