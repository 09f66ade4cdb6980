package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/rpm-software-management/rpm-sub016/rpmdb"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"

	"github.com/spf13/viper"
)

// Backends a database can be opened on.
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendLibSQL = "libsql"
)

// Config stores all configuration of the package database.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Index       IndexConfig       `mapstructure:"index"`
	Fingerprint FingerprintConfig `mapstructure:"fingerprint"`
	Label       LabelConfig       `mapstructure:"label"`
	Log         LogConfig         `mapstructure:"log"`
}

// DatabaseConfig selects and locates the store.
type DatabaseConfig struct {
	Backend         string `mapstructure:"backend"`
	Path            string `mapstructure:"path"`
	DSN             string `mapstructure:"dsn"`
	HeaderCacheSize int    `mapstructure:"headerCacheSize"`
}

// IndexConfig sizes index sets built by queries.
type IndexConfig struct {
	SizeHint int `mapstructure:"sizeHint"`
}

// FingerprintConfig drives file identity resolution.
type FingerprintConfig struct {
	SizeHint int      `mapstructure:"sizeHint"`
	Root     string   `mapstructure:"root"`
	SkipDirs []string `mapstructure:"skipDirs"`
	Workers  int      `mapstructure:"workers"`
}

// LabelConfig tunes label resolution.
type LabelConfig struct {
	BacktrackOnFiltered bool `mapstructure:"backtrackOnFiltered"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Backend:         internal.DefaultBackend,
			Path:            internal.DefaultDatabasePath,
			DSN:             internal.DefaultDatabaseDSN,
			HeaderCacheSize: internal.DefaultHeaderCache,
		},
		Index: IndexConfig{SizeHint: internal.DefaultIndexSizeHint},
		Fingerprint: FingerprintConfig{
			SizeHint: internal.DefaultFpSizeHint,
			Root:     internal.DefaultFingerprintFS,
			Workers:  internal.DefaultLookupWorkers,
		},
		Log: LogConfig{Level: internal.DefaultLogLevel},
	}
}

// LoadConfig reads configuration from file or environment variables.
// Environment variables are prefixed with RPMDB_, e.g. RPMDB_DATABASE_BACKEND.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// the working directory wins over the per-user global file
		global := internal.DefaultGlobalConfig
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(filepath.Dir(global))
		v.SetConfigName(strings.TrimSuffix(filepath.Base(global), filepath.Ext(global)))
		v.SetConfigType("yaml")
	}

	def := Default()
	v.SetDefault("database.backend", def.Database.Backend)
	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("database.dsn", def.Database.DSN)
	v.SetDefault("database.headerCacheSize", def.Database.HeaderCacheSize)
	v.SetDefault("index.sizeHint", def.Index.SizeHint)
	v.SetDefault("fingerprint.sizeHint", def.Fingerprint.SizeHint)
	v.SetDefault("fingerprint.root", def.Fingerprint.Root)
	v.SetDefault("fingerprint.skipDirs", []string{})
	v.SetDefault("fingerprint.workers", def.Fingerprint.Workers)
	v.SetDefault("label.backtrackOnFiltered", false)
	v.SetDefault("log.level", def.Log.Level)

	v.SetEnvPrefix(internal.DefaultAppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no config file; defaults and environment apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case BackendMemory, BackendPebble, BackendLibSQL:
	default:
		return common.WrapError(common.ErrInvalidArgument, "unknown database backend %q", c.Database.Backend)
	}
	if c.Database.HeaderCacheSize < 0 || c.Index.SizeHint < 0 || c.Fingerprint.SizeHint < 0 {
		return common.WrapError(common.ErrInvalidArgument, "sizes must not be negative")
	}
	if c.Fingerprint.Workers < 1 {
		return common.WrapError(common.ErrInvalidArgument, "fingerprint.workers must be at least 1, got %d", c.Fingerprint.Workers)
	}
	return nil
}
