package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/lazypower/mem/internal/store"
)

// EnvPrefix is prepended to environment overrides: MEM_DATABASE_PATH, MEM_LOG_LEVEL, ...
const EnvPrefix = "MEM"

// MaxContextLimit bounds how many memories a context block may include.
const MaxContextLimit = 50

// Config holds all mem configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Decay    DecayConfig    `mapstructure:"decay"`
	Search   SearchConfig   `mapstructure:"search"`
	Context  ContextConfig  `mapstructure:"context"`
	Indexer  IndexerConfig  `mapstructure:"indexer"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"` // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

type DecayConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

type ContextConfig struct {
	Limit int `mapstructure:"limit"`
}

type IndexerConfig struct {
	Patterns []string `mapstructure:"patterns"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37777,
		},
		Database: DatabaseConfig{
			Path: "", // resolved by Load via store.DefaultDBPath()
		},
		Log: LogConfig{
			Level: "info",
		},
		Decay: DecayConfig{
			Threshold: store.DefaultDecayThreshold,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxLimit:     200,
		},
		Context: ContextConfig{
			Limit: 10,
		},
		Indexer: IndexerConfig{
			Patterns: []string{"CLAUDE.md", "README.md", "docs/**/*.md"},
		},
	}
}

// DefaultPath returns the default config file location: ~/.mem/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".mem", "config.toml"), nil
}

// Load reads the TOML config at path (DefaultPath when empty) and overlays
// MEM_* environment variables. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("stat config %s: %w", path, err)
	}

	// Every key has a default, so a zero Config is filled completely.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Database.Path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return Config{}, err
		}
		cfg.Database.Path = p
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys
// absent from the file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("decay.threshold", d.Decay.Threshold)
	v.SetDefault("search.default_limit", d.Search.DefaultLimit)
	v.SetDefault("search.max_limit", d.Search.MaxLimit)
	v.SetDefault("context.limit", d.Context.Limit)
	v.SetDefault("indexer.patterns", d.Indexer.Patterns)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 1 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	case c.Decay.Threshold < 0 || math.IsNaN(c.Decay.Threshold) || math.IsInf(c.Decay.Threshold, 0):
		return fmt.Errorf("decay.threshold must be a finite non-negative number, got %v", c.Decay.Threshold)
	case c.Search.DefaultLimit <= 0:
		return fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	case c.Search.MaxLimit <= 0:
		return fmt.Errorf("search.max_limit must be positive, got %d", c.Search.MaxLimit)
	case c.Search.DefaultLimit > c.Search.MaxLimit:
		return fmt.Errorf("search.default_limit %d exceeds search.max_limit %d", c.Search.DefaultLimit, c.Search.MaxLimit)
	case c.Context.Limit <= 0 || c.Context.Limit > MaxContextLimit:
		return fmt.Errorf("context.limit must be between 1 and %d, got %d", MaxContextLimit, c.Context.Limit)
	case len(c.Indexer.Patterns) == 0:
		return errors.New("indexer.patterns must not be empty")
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// SearchLimit clamps a requested limit: non-positive falls back to the
// default, anything above MaxLimit is capped.
func (c *Config) SearchLimit(n int) int {
	return clamp(n, c.Search.DefaultLimit, c.Search.MaxLimit)
}

// ContextLimit clamps a requested context size the same way.
func (c *Config) ContextLimit(n int) int {
	return clamp(n, c.Context.Limit, MaxContextLimit)
}

func clamp(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
