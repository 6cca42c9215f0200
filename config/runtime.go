package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// RuntimeConfig is the per-process configuration the engine needs that
// is NOT part of ChunkedGraphMeta: credentials, timeouts, and cache
// sizes (spec.md §6 "Runtime configuration carries only credentials,
// timeouts, and cache sizes").
type RuntimeConfig struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Locking   LockingConfig   `mapstructure:"locking"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
}

// StorageConfig configures the Bigtable-backed storage client.
type StorageConfig struct {
	ProjectID      string `mapstructure:"project_id"`
	InstanceID     string `mapstructure:"instance_id"`
	Table          string `mapstructure:"table"`
	ReadRowChunk   int    `mapstructure:"read_row_chunk"`   // ~20000 per spec.md §4.6
	MaxConcurrency int    `mapstructure:"max_concurrency"`
}

// LockingConfig bounds root-lease behavior (spec.md §5).
type LockingConfig struct {
	LockExpiry time.Duration `mapstructure:"lock_expiry"`
	MaxTries   int           `mapstructure:"max_tries"`
}

// CacheConfig bounds the optional row cache (spec.md §5 "row cache ...
// must be strictly a read-through ... invalidated on write").
type CacheConfig struct {
	MaxRows int `mapstructure:"max_rows"`
}

// LogConfig configures structured logging (see clog/).
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// DefaultRuntimeConfig returns conservative defaults matching the
// bounds named throughout spec.md (read-row chunking of ~20000,
// lock_expiry in the seconds-to-a-minute range, max_tries small).
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Storage: StorageConfig{
			ReadRowChunk:   20000,
			MaxConcurrency: 8,
		},
		Locking: LockingConfig{
			LockExpiry: 30 * time.Second,
			MaxTries:   5,
		},
		Cache: CacheConfig{
			MaxRows: 100000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultRuntimeConfig()
	v.SetDefault("storage.read_row_chunk", d.Storage.ReadRowChunk)
	v.SetDefault("storage.max_concurrency", d.Storage.MaxConcurrency)
	v.SetDefault("locking.lock_expiry", d.Locking.LockExpiry)
	v.SetDefault("locking.max_tries", d.Locking.MaxTries)
	v.SetDefault("cache.max_rows", d.Cache.MaxRows)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads RuntimeConfig from a YAML file at configPath, falling back
// to DefaultRuntimeConfig (overridable by environment variables) when
// the file is absent — grounded on the perf-analysis corpus's
// config.Load, which treats a missing file as "use defaults", not a
// fatal error.
func Load(configPath string) (RuntimeConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return RuntimeConfig{}, fmt.Errorf("config: reading %s: %w", configPath, err)
			}
		}
	}

	var cfg RuntimeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks the bounds spec.md names explicitly.
func (c RuntimeConfig) Validate() error {
	if c.Storage.ReadRowChunk <= 0 {
		return fmt.Errorf("storage.read_row_chunk must be > 0")
	}
	if c.Locking.LockExpiry <= 0 {
		return fmt.Errorf("locking.lock_expiry must be > 0")
	}
	if c.Locking.MaxTries <= 0 {
		return fmt.Errorf("locking.max_tries must be > 0")
	}
	return nil
}
