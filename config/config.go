// Package config loads catalogcache settings from a file and the environment
// and keeps them current while the daemon runs.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds everything the daemon needs.
type Config struct {
	Engine    Settings        `mapstructure:"engine"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	TMDB      TMDBConfig      `mapstructure:"tmdb"`
	Populator PopulatorConfig `mapstructure:"populator"`
}

// CacheConfig selects the byte store and value encoding.
type CacheConfig struct {
	Provider       string      `mapstructure:"provider"` // ristretto | bigcache | redis | memory
	Codec          string      `mapstructure:"codec"`    // msgpack | cbor | json
	Namespace      string      `mapstructure:"namespace"`
	MaxBytes       int64       `mapstructure:"max_bytes"`
	MaxDecodeBytes int         `mapstructure:"max_decode_bytes"`
	Redis          RedisConfig `mapstructure:"redis"`
	// SharedGenerations keeps the generation counter in Redis so replicas
	// and restarts agree on the namespace.
	SharedGenerations bool `mapstructure:"shared_generations"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Backend string `mapstructure:"backend"` // zap | logrus | slog
	Level   string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type TMDBConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	ImageBase   string `mapstructure:"image_base"`
	Language    string `mapstructure:"language"`
	RankByTitle bool   `mapstructure:"rank_by_title"`
}

type PopulatorConfig struct {
	Path           string `mapstructure:"path"` // empty disables the populator
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ErrNoUpstream is returned when no upstream base URL is configured.
var ErrNoUpstream = errors.New("config: engine.base_url is required")

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Engine: DefaultSettings(),
		Cache: CacheConfig{
			Provider:       "ristretto",
			Codec:          "msgpack",
			Namespace:      "catalog",
			MaxBytes:       256 << 20,
			MaxDecodeBytes: 32 << 20,
		},
		Log:       LogConfig{Backend: "zap", Level: "info"},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Populator: PopulatorConfig{TimeoutSeconds: 300},
	}
}

// Validate reports configuration that cannot start the daemon.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Engine.BaseURL) == "" {
		return ErrNoUpstream
	}
	switch c.Cache.Provider {
	case "ristretto", "bigcache", "redis", "memory":
	default:
		return fmt.Errorf("config: unknown cache.provider %q", c.Cache.Provider)
	}
	if (c.Cache.Provider == "redis" || c.Cache.SharedGenerations) && c.Cache.Redis.Addr == "" {
		return errors.New("config: cache.redis.addr is required")
	}
	return nil
}

// Loader reads a config file plus CATALOG_* environment overrides.
// Environment keys use '_' for nesting: CATALOG_ENGINE_REFRESH_PARALLELISM.
type Loader struct {
	v    *viper.Viper
	path string
	mu   sync.Mutex
}

func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("catalogcache")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/catalogcache")
	}
	return &Loader{v: v, path: path}
}

// Load is shorthand for NewLoader(path).Load().
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Load reads and normalizes the configuration. A missing file is only an
// error when a path was given explicitly.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	cfg := Default()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.Engine = cfg.Engine.Normalize()
	return cfg, nil
}

// Watch calls fn with the re-read configuration whenever the file changes.
// Decode failures go to onErr and leave the previous configuration in place.
func (l *Loader) Watch(fn func(*Config), onErr func(error)) {
	l.v.OnConfigChange(func(fsnotify.Event) {
		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(cfg)
	})
	l.v.WatchConfig()
}

func setDefaults(v *viper.Viper, d *Config) {
	e := d.Engine
	v.SetDefault("engine.enable_caching", e.EnableCaching)
	v.SetDefault("engine.refresh_interval_minutes", e.RefreshIntervalMinutes)
	v.SetDefault("engine.refresh_parallelism", e.RefreshParallelism)
	v.SetDefault("engine.min_request_delay_ms", e.MinRequestDelayMs)
	v.SetDefault("engine.enable_retry", e.EnableRetry)
	v.SetDefault("engine.retry_max_attempts", e.RetryMaxAttempts)
	v.SetDefault("engine.retry_initial_delay_ms", e.RetryInitialDelayMs)
	v.SetDefault("engine.failure_cache_ttl_hours", e.FailureCacheTTLHours)
	v.SetDefault("engine.throw_on_persistent_failure", e.ThrowOnPersistentFailure)
	v.SetDefault("engine.enable_artwork", e.EnableArtwork)
	v.SetDefault("engine.title_overrides", e.TitleOverrides)
	v.SetDefault("engine.base_url", "")
	v.SetDefault("engine.username", "")
	v.SetDefault("engine.password", "")
	v.SetDefault("engine.categories", []int{})
	v.SetDefault("engine.entry_ttl_hours", e.EntryTTLHours)

	v.SetDefault("cache.provider", d.Cache.Provider)
	v.SetDefault("cache.codec", d.Cache.Codec)
	v.SetDefault("cache.namespace", d.Cache.Namespace)
	v.SetDefault("cache.max_bytes", d.Cache.MaxBytes)
	v.SetDefault("cache.max_decode_bytes", d.Cache.MaxDecodeBytes)
	v.SetDefault("cache.shared_generations", false)
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("log.backend", d.Log.Backend)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("http.addr", d.HTTP.Addr)

	v.SetDefault("tmdb.api_key", "")
	v.SetDefault("tmdb.base_url", "")
	v.SetDefault("tmdb.image_base", "")
	v.SetDefault("tmdb.language", "")
	v.SetDefault("tmdb.rank_by_title", false)

	v.SetDefault("populator.path", "")
	v.SetDefault("populator.timeout_seconds", d.Populator.TimeoutSeconds)
}
