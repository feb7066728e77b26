// Package config loads lsmvec CLI configuration from flags, environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hupe1980/lsmvec"
	"github.com/hupe1980/lsmvec/codec"
)

// EnvPrefix is the prefix of environment variables, e.g. LSMVEC_DIR or
// LSMVEC_STORE_MEMTABLE_FLUSH_SIZE.
const EnvPrefix = "LSMVEC"

// DefaultDir is the store directory used when none is configured.
const DefaultDir = "./lsmvec-data"

// Config represents the complete CLI configuration.
type Config struct {
	Dir   string      `mapstructure:"dir"`
	Store StoreConfig `mapstructure:"store"`
	Log   LogConfig   `mapstructure:"log"`
}

// StoreConfig mirrors the store's functional options.
type StoreConfig struct {
	MemtableFlushSize        int           `mapstructure:"memtable_flush_size"`
	MaxSegmentsBeforeCompact int           `mapstructure:"max_segments_before_compact"`
	Durability               string        `mapstructure:"durability"`
	Compression              string        `mapstructure:"compression"`
	Codec                    string        `mapstructure:"codec"`
	SegmentCacheSize         int           `mapstructure:"segment_cache_size"`
	CompactionIOLimit        int64         `mapstructure:"compaction_io_limit"`
	OverfetchFactor          int           `mapstructure:"overfetch_factor"`
	IndexRebuildRatio        float64       `mapstructure:"index_rebuild_ratio"`
	LockTimeout              time.Duration `mapstructure:"lock_timeout"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Dir: DefaultDir,
		Store: StoreConfig{
			MemtableFlushSize:        lsmvec.DefaultMemtableFlushSize,
			MaxSegmentsBeforeCompact: lsmvec.DefaultMaxSegmentsBeforeCompact,
			Durability:               "sync",
			Compression:              "zstd",
			Codec:                    codec.Default.Name(),
			SegmentCacheSize:         16,
			OverfetchFactor:          lsmvec.DefaultOverfetchFactor,
			IndexRebuildRatio:        lsmvec.DefaultIndexRebuildRatio,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("dir", d.Dir)
	v.SetDefault("store.memtable_flush_size", d.Store.MemtableFlushSize)
	v.SetDefault("store.max_segments_before_compact", d.Store.MaxSegmentsBeforeCompact)
	v.SetDefault("store.durability", d.Store.Durability)
	v.SetDefault("store.compression", d.Store.Compression)
	v.SetDefault("store.codec", d.Store.Codec)
	v.SetDefault("store.segment_cache_size", d.Store.SegmentCacheSize)
	v.SetDefault("store.compaction_io_limit", d.Store.CompactionIOLimit)
	v.SetDefault("store.overfetch_factor", d.Store.OverfetchFactor)
	v.SetDefault("store.index_rebuild_ratio", d.Store.IndexRebuildRatio)
	v.SetDefault("store.lock_timeout", d.Store.LockTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configFile (if set, otherwise lsmvec.yaml in the working
// directory when present) into v and returns the resulting configuration.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("lsmvec")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that the store options would otherwise ignore
// silently.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return errors.New("config: dir must not be empty")
	}
	if c.Store.MemtableFlushSize < 1 {
		return fmt.Errorf("config: memtable_flush_size must be >= 1, got %d", c.Store.MemtableFlushSize)
	}
	if c.Store.MaxSegmentsBeforeCompact < 1 {
		return fmt.Errorf("config: max_segments_before_compact must be >= 1, got %d", c.Store.MaxSegmentsBeforeCompact)
	}
	if r := c.Store.IndexRebuildRatio; r < 0 || r > 1 {
		return fmt.Errorf("config: index_rebuild_ratio must be within [0,1], got %g", r)
	}
	if _, err := lsmvec.ParseDurability(c.Store.Durability); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := lsmvec.ParseCompression(c.Store.Compression); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, ok := codec.ByName(c.Store.Codec); !ok {
		return fmt.Errorf("config: unknown codec %q", c.Store.Codec)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

func (l LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: %w", err)
	}
	return lvl, nil
}

// Logger builds the configured logger.
func (c *Config) Logger() *lsmvec.Logger {
	lvl, _ := c.Log.level()
	if c.Log.Format == "json" {
		return lsmvec.NewJSONLogger(lvl)
	}
	return lsmvec.NewTextLogger(lvl)
}

// StoreOptions translates the configuration into store options.
func (c *Config) StoreOptions() ([]lsmvec.Option, error) {
	durability, err := lsmvec.ParseDurability(c.Store.Durability)
	if err != nil {
		return nil, err
	}
	compression, err := lsmvec.ParseCompression(c.Store.Compression)
	if err != nil {
		return nil, err
	}
	cd, ok := codec.ByName(c.Store.Codec)
	if !ok {
		return nil, fmt.Errorf("config: unknown codec %q", c.Store.Codec)
	}

	return []lsmvec.Option{
		lsmvec.WithMemtableFlushSize(c.Store.MemtableFlushSize),
		lsmvec.WithMaxSegmentsBeforeCompact(c.Store.MaxSegmentsBeforeCompact),
		lsmvec.WithDurability(durability),
		lsmvec.WithCompression(compression),
		lsmvec.WithCodec(cd),
		lsmvec.WithSegmentCacheSize(c.Store.SegmentCacheSize),
		lsmvec.WithCompactionIOLimit(c.Store.CompactionIOLimit),
		lsmvec.WithOverfetchFactor(c.Store.OverfetchFactor),
		lsmvec.WithIndexRebuildRatio(c.Store.IndexRebuildRatio),
		lsmvec.WithLockTimeout(c.Store.LockTimeout),
		lsmvec.WithLogger(c.Logger()),
	}, nil
}
