package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the coordinator reads at startup. Field
// names match the monitor loop's own vocabulary (spec.md §4.10-§4.12)
// so a reader can match a YAML key straight to the behavior it tunes.
type Config struct {
	// Identity.
	PNN         uint32 `yaml:"pnn"`
	NodesFile   string `yaml:"nodes_file"`
	StateDir    string `yaml:"state_dir"`
	PIDFile     string `yaml:"pid_file"`
	DBStateDir  string `yaml:"db_state_dir"`

	// Network.
	ListenAddress  string `yaml:"listen_address"`
	MetricsAddress string `yaml:"metrics_address"`

	// Timing, all in seconds in the YAML file for operator
	// readability; parsed into time.Duration fields below.
	RecoverIntervalSeconds   float64 `yaml:"recover_interval_seconds"`
	ElectionTimeoutSeconds   float64 `yaml:"election_timeout_seconds"`
	FastStartTimeoutSeconds  float64 `yaml:"fast_start_timeout_seconds"`
	GracePeriodSeconds       float64 `yaml:"grace_period_seconds"`
	BanPeriodSeconds         float64 `yaml:"ban_period_seconds"`
	RerecoveryTimeoutSeconds float64 `yaml:"rerecovery_timeout_seconds"`
	DeferredRebalanceSeconds float64 `yaml:"deferred_rebalance_seconds"`

	// Recovery lock.
	RecoveryLockFile string `yaml:"recovery_lock_file"`

	// Parallel recovery helper.
	ParallelRecoveryEnabled bool   `yaml:"parallel_recovery_enabled"`
	RecoveryHelperPath      string `yaml:"recovery_helper_path"`

	// IP failover.
	IPFailoverEnabled bool `yaml:"ip_failover_enabled"`

	// Logging.
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns a Config pre-populated with the same timing values
// the monitor loop and recovery engine use as their own package-level
// defaults, so a deployment with no YAML file at all still runs with
// sane tunables.
func Default() Config {
	return Config{
		NodesFile:                "/etc/recoverd/nodes",
		StateDir:                 "/var/lib/recoverd",
		PIDFile:                  "/var/run/ctdbd.pid",
		DBStateDir:               "/var/lib/recoverd/dbs",
		ListenAddress:            "0.0.0.0:4379",
		MetricsAddress:           "0.0.0.0:9379",
		RecoverIntervalSeconds:   1,
		ElectionTimeoutSeconds:   5,
		FastStartTimeoutSeconds: 1,
		GracePeriodSeconds:       300,
		BanPeriodSeconds:         30,
		RerecoveryTimeoutSeconds: 10,
		DeferredRebalanceSeconds: 5,
		RecoveryLockFile:         "",
		ParallelRecoveryEnabled:  false,
		RecoveryHelperPath:       "",
		IPFailoverEnabled:        true,
		LogLevel:                 "info",
		LogJSON:                  false,
	}
}

// Load reads path, merging its contents over Default(). A missing
// path is not an error: the defaults stand on their own, matching the
// teacher's own tolerance for an absent config file at first boot.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// RecoverInterval is RecoverIntervalSeconds as a time.Duration.
func (c Config) RecoverInterval() time.Duration {
	return durationOf(c.RecoverIntervalSeconds)
}

// ElectionTimeout is ElectionTimeoutSeconds as a time.Duration.
func (c Config) ElectionTimeout() time.Duration {
	return durationOf(c.ElectionTimeoutSeconds)
}

// FastStartTimeout is FastStartTimeoutSeconds as a time.Duration.
func (c Config) FastStartTimeout() time.Duration {
	return durationOf(c.FastStartTimeoutSeconds)
}

// GracePeriod is GracePeriodSeconds as a time.Duration.
func (c Config) GracePeriod() time.Duration {
	return durationOf(c.GracePeriodSeconds)
}

// BanPeriod is BanPeriodSeconds as a time.Duration.
func (c Config) BanPeriod() time.Duration {
	return durationOf(c.BanPeriodSeconds)
}

// RerecoveryTimeout is RerecoveryTimeoutSeconds as a time.Duration.
func (c Config) RerecoveryTimeout() time.Duration {
	return durationOf(c.RerecoveryTimeoutSeconds)
}

// DeferredRebalance is DeferredRebalanceSeconds as a time.Duration.
func (c Config) DeferredRebalance() time.Duration {
	return durationOf(c.DeferredRebalanceSeconds)
}

func durationOf(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// ApplyFlagOverrides merges any non-zero-value overrides (typically
// parsed from cobra persistent flags) onto cfg, following the same
// "flags win over file" precedence as the teacher's own
// apply/cobra-flag layering.
func (c Config) ApplyFlagOverrides(overrides FlagOverrides) Config {
	out := c
	if overrides.ListenAddress != "" {
		out.ListenAddress = overrides.ListenAddress
	}
	if overrides.LogLevel != "" {
		out.LogLevel = overrides.LogLevel
	}
	if overrides.LogJSONSet {
		out.LogJSON = overrides.LogJSON
	}
	if overrides.NodesFile != "" {
		out.NodesFile = overrides.NodesFile
	}
	return out
}

// FlagOverrides carries the subset of tunables exposed as top-level
// CLI flags, distinct from Config so zero-valued flags (not passed by
// the operator) are distinguishable from an explicit empty string.
type FlagOverrides struct {
	ListenAddress string
	LogLevel      string
	LogJSON       bool
	LogJSONSet    bool
	NodesFile     string
}
