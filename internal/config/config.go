// Package config loads mftsearch's runtime configuration with Viper,
// adapted from the teacher's own DMG-handling configuration loader: the same
// search-path list, env-var prefix, and defaults-then-override layering.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/halsted/mftsearch/internal/mftypes"
)

// Config holds every tunable of the indexing and query pipeline.
type Config struct {
	// ArtifactsRoot is the directory holding all per-volume artifacts.
	ArtifactsRoot string `mapstructure:"artifacts_root"`

	// IgnorePatterns are additional lowercase substrings, beyond
	// mftypes.DefaultIgnorePatterns, that exclude a path from the index.
	IgnorePatterns []string `mapstructure:"ignore_patterns"`

	// FormatVersion is compared against the on-disk marker file; a mismatch
	// purges all artifacts before scanning.
	FormatVersion int `mapstructure:"format_version"`

	// MergeThresholdMB is the delta-file size, in megabytes, that triggers a
	// compaction run.
	MergeThresholdMB int64 `mapstructure:"merge_threshold_mb"`

	// MergeIntervalSeconds is the cadence at which the delta merger wakes to
	// check the delta file size.
	MergeIntervalSeconds int `mapstructure:"merge_interval_seconds"`

	// UpdaterPollIntervalMillis is the sleep between empty USN journal
	// polls.
	UpdaterPollIntervalMillis int `mapstructure:"updater_poll_interval_millis"`

	// DeltaFlushGramThreshold is the number of distinct grams the updater
	// accumulates before flushing its batch to the delta file.
	DeltaFlushGramThreshold int `mapstructure:"delta_flush_gram_threshold"`

	// WarmupDrives lists drive letters to pre-open. It is loaded from
	// configuration only; no command reads it (the warmup command takes its
	// drives as an argument).
	WarmupDrives []string `mapstructure:"warmup_drives"`
}

// defaultArtifactsRoot mirrors query_cache.rs: MFT_INDEX_DIR env var first,
// else <LOCALAPPDATA>\iLauncher\mft_databases.
func defaultArtifactsRoot() string {
	if v := os.Getenv("MFT_INDEX_DIR"); v != "" {
		return v
	}
	local := os.Getenv("LOCALAPPDATA")
	return filepath.Join(local, "iLauncher", "mft_databases")
}

// Load reads configuration from (in order of increasing precedence) compiled
// defaults, a config file, and environment variables prefixed MFT_.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("mftsearch-config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.mftsearch")
	v.AddConfigPath("/etc/mftsearch")

	v.SetDefault("artifacts_root", defaultArtifactsRoot())
	v.SetDefault("ignore_patterns", []string{})
	v.SetDefault("format_version", mftypes.CurrentFormatVersion)
	v.SetDefault("merge_threshold_mb", int64(50))
	v.SetDefault("merge_interval_seconds", 300)
	v.SetDefault("updater_poll_interval_millis", 100)
	v.SetDefault("delta_flush_gram_threshold", 1000)
	v.SetDefault("warmup_drives", []string{})

	v.SetEnvPrefix("MFT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// AllIgnorePatterns returns the built-in ignore substrings plus any
// user-supplied ones.
func (c *Config) AllIgnorePatterns() []string {
	out := make([]string, 0, len(mftypes.DefaultIgnorePatterns)+len(c.IgnorePatterns))
	out = append(out, mftypes.DefaultIgnorePatterns...)
	out = append(out, c.IgnorePatterns...)
	return out
}
