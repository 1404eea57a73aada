// Package config resolves the coordination core's tunables from flags, the
// MLAT_SERVER_ environment prefix, and built-in defaults, generalizing the
// teacher's LookupEnvOrString/LookupEnvOrDur helpers into a real config
// layer backed by viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every tunable the coordination core reads. spec.md
// introduces these as "configuration constants... referenced here" without
// owning their loading; this package is that owner.
type Config struct {
	WorkDir        string
	Tag            string
	PartitionIndex int
	PartitionCount int

	MaxSyncAircraft int
	MaxSyncRate     float64
	MetersToFeet    float64

	ForceMlatInterval time.Duration
	NoAdsbMlatSeconds time.Duration

	StateDumpInterval   time.Duration
	ProfileDumpInterval time.Duration

	HandshakeLogPath    string
	HandshakeLogMaxMB   int
	HandshakeLogBackups int

	AMQPURL      string
	AMQPExchange string
}

// Defaults returns the configuration used when no flag or env var
// overrides a field.
func Defaults() Config {
	return Config{
		WorkDir:        ".",
		Tag:            "mlat",
		PartitionIndex: 1,
		PartitionCount: 1,

		MaxSyncAircraft: 20,
		MaxSyncRate:     50.0,
		MetersToFeet:    3.28084,

		ForceMlatInterval: 600 * time.Second,
		NoAdsbMlatSeconds: 120 * time.Second,

		StateDumpInterval:   15 * time.Second,
		ProfileDumpInterval: 60 * time.Second,

		HandshakeLogPath:    "handshakes.log",
		HandshakeLogMaxMB:   1,
		HandshakeLogBackups: 2,

		AMQPExchange: "mlat-results",
	}
}

// Load builds a Config from defaults, optionally overridden by flags bound
// to the given flag set and by MLAT_SERVER_* environment variables (flag
// names are upper-cased and "-" is replaced with "_" to form the env key,
// e.g. "force-mlat-interval" -> MLAT_SERVER_FORCE_MLAT_INTERVAL).
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MLAT_SERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	def := Defaults()

	v.SetDefault("work-dir", def.WorkDir)
	v.SetDefault("tag", def.Tag)
	v.SetDefault("partition-index", def.PartitionIndex)
	v.SetDefault("partition-count", def.PartitionCount)
	v.SetDefault("max-sync-aircraft", def.MaxSyncAircraft)
	v.SetDefault("max-sync-rate", def.MaxSyncRate)
	v.SetDefault("meters-to-feet", def.MetersToFeet)
	v.SetDefault("force-mlat-interval", int(def.ForceMlatInterval.Seconds()))
	v.SetDefault("no-adsb-mlat-seconds", int(def.NoAdsbMlatSeconds.Seconds()))
	v.SetDefault("state-dump-interval", int(def.StateDumpInterval.Seconds()))
	v.SetDefault("profile-dump-interval", int(def.ProfileDumpInterval.Seconds()))
	v.SetDefault("handshake-log-path", def.HandshakeLogPath)
	v.SetDefault("handshake-log-max-mb", def.HandshakeLogMaxMB)
	v.SetDefault("handshake-log-backups", def.HandshakeLogBackups)
	v.SetDefault("amqp-url", def.AMQPURL)
	v.SetDefault("amqp-exchange", def.AMQPExchange)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := Config{
		WorkDir:        v.GetString("work-dir"),
		Tag:            v.GetString("tag"),
		PartitionIndex: v.GetInt("partition-index"),
		PartitionCount: v.GetInt("partition-count"),

		MaxSyncAircraft: v.GetInt("max-sync-aircraft"),
		MaxSyncRate:     v.GetFloat64("max-sync-rate"),
		MetersToFeet:    v.GetFloat64("meters-to-feet"),

		ForceMlatInterval: time.Duration(v.GetInt("force-mlat-interval")) * time.Second,
		NoAdsbMlatSeconds: time.Duration(v.GetInt("no-adsb-mlat-seconds")) * time.Second,

		StateDumpInterval:   time.Duration(v.GetInt("state-dump-interval")) * time.Second,
		ProfileDumpInterval: time.Duration(v.GetInt("profile-dump-interval")) * time.Second,

		HandshakeLogPath:    v.GetString("handshake-log-path"),
		HandshakeLogMaxMB:   v.GetInt("handshake-log-max-mb"),
		HandshakeLogBackups: v.GetInt("handshake-log-backups"),

		AMQPURL:      v.GetString("amqp-url"),
		AMQPExchange: v.GetString("amqp-exchange"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the partition invariant from spec.md §6
// ("1 ≤ partition_index ≤ partition_count"). This is the one place an
// invariant violation surfaces as an error rather than a panic, since it
// originates at a system boundary (CLI flags / environment).
func (c Config) Validate() error {
	if c.PartitionCount < 1 {
		return fmt.Errorf("partition-count must be >= 1, got %d", c.PartitionCount)
	}
	if c.PartitionIndex < 1 || c.PartitionIndex > c.PartitionCount {
		return fmt.Errorf("partition-index must be in [1, %d], got %d", c.PartitionCount, c.PartitionIndex)
	}
	return nil
}
