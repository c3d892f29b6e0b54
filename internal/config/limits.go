package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// LimitsConfig collects the operational knobs of the entitlement subsystem
// that ops may tune without a redeploy. Tier allowances themselves live in
// the compiled-in catalog and are not reloadable.
type LimitsConfig struct {
	// WarningThresholdPercent is the soft-cap percentage at which checks
	// start flagging IsWarning while still allowing the request.
	WarningThresholdPercent int `mapstructure:"warningThresholdPercent"`

	// UpgradeURL is the call-to-action link attached to denials.
	UpgradeURL string `mapstructure:"upgradeUrl"`

	// RateLimitEnabled toggles the per-org request limiter.
	RateLimitEnabled bool `mapstructure:"rateLimitEnabled"`

	// RateLimitBurst is the bucket burst on top of the tier's per-minute rate.
	RateLimitBurst int `mapstructure:"rateLimitBurst"`

	// SweepBatchSize bounds how many rows one sweep pass claims.
	SweepBatchSize int `mapstructure:"sweepBatchSize"`
}

func DefaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		WarningThresholdPercent: 90,
		UpgradeURL:              "https://storyloom.app/settings/billing",
		RateLimitEnabled:        true,
		RateLimitBurst:          10,
		SweepBatchSize:          100,
	}
}

// LimitsHolder hot-reloads LimitsConfig from a volume-mounted YAML file.
type LimitsHolder struct {
	current atomic.Value // holds LimitsConfig
}

func NewLimitsHolder() (*LimitsHolder, error) {
	v := viper.New()

	v.SetConfigName("limits")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/storyloom/config")
	v.AddConfigPath("/etc/storyloom")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STORYLOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultLimitsConfig()
	v.SetDefault("limits.warningThresholdPercent", defaults.WarningThresholdPercent)
	v.SetDefault("limits.upgradeUrl", defaults.UpgradeURL)
	v.SetDefault("limits.rateLimitEnabled", defaults.RateLimitEnabled)
	v.SetDefault("limits.rateLimitBurst", defaults.RateLimitBurst)
	v.SetDefault("limits.sweepBatchSize", defaults.SweepBatchSize)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg LimitsConfig
	if err := v.UnmarshalKey("limits", &cfg); err != nil {
		return nil, err
	}
	if err := validateLimitsConfig(cfg); err != nil {
		return nil, err
	}

	holder := &LimitsHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated LimitsConfig
		if err := v.UnmarshalKey("limits", &updated); err != nil {
			log.Printf("[limits-config] reload failed: %v", err)
			return
		}
		if err := validateLimitsConfig(updated); err != nil {
			log.Printf("[limits-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[limits-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *LimitsHolder) Get() LimitsConfig {
	return h.current.Load().(LimitsConfig)
}

// NewStaticLimitsHolder returns a holder pinned to cfg, for tests.
func NewStaticLimitsHolder(cfg LimitsConfig) *LimitsHolder {
	holder := &LimitsHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateLimitsConfig(cfg LimitsConfig) error {
	if cfg.WarningThresholdPercent <= 0 || cfg.WarningThresholdPercent > 100 {
		return errors.New("limits.warningThresholdPercent must be in (0, 100]")
	}
	if cfg.SweepBatchSize <= 0 {
		return errors.New("limits.sweepBatchSize must be positive")
	}
	return nil
}
