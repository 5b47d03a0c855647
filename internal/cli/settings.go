package cli

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/datacite/akita/internal/model"
)

// setDefaults registers every config key with viper so that environment
// variables are picked up for keys absent from the config file
func setDefaults(v *viper.Viper) {
	d := model.DefaultConfig()

	v.SetDefault("api.endpoint", d.API.Endpoint)

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("http.max_retries", d.HTTP.MaxRetries)
	v.SetDefault("http.insecure_tls", d.HTTP.InsecureTLS)
	v.SetDefault("http.http_proxy", d.HTTP.HTTPProxy)
	v.SetDefault("http.https_proxy", d.HTTP.HTTPSProxy)
	v.SetDefault("http.no_proxy", d.HTTP.NoProxy)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.memory_ttl", d.Cache.MemoryTTL)
	v.SetDefault("cache.disk_ttl", d.Cache.DiskTTL)

	v.SetDefault("claim.source_id", d.Claim.SourceID)
	v.SetDefault("claim.poll_interval", d.Claim.PollInterval)
	v.SetDefault("claim.claimable_agency", d.Claim.ClaimableAgency)

	v.SetDefault("session.token", d.Session.Token)
	v.SetDefault("session.orcid", d.Session.Orcid)
	v.SetDefault("session.name", d.Session.Name)

	v.SetDefault("concurrency.workers", d.Concurrency.Workers)

	v.SetDefault("rate_limiting.requests_per_second", d.RateLimiting.RequestsPerSecond)
	v.SetDefault("rate_limiting.burst_size", d.RateLimiting.BurstSize)

	v.SetDefault("output.verbose", d.Output.Verbose)
	v.SetDefault("output.pretty", d.Output.Pretty)
}

// loadConfig merges defaults, config file, environment and flags, then
// validates the result
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the stderr logger. Only warnings are shown unless verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
