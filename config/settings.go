package config

import (
	"sort"
	"strconv"
	"time"

	"github.com/unkn0wn-root/catalogcache/internal/util"
	"github.com/unkn0wn-root/catalogcache/retry"
)

// Settings are the engine's runtime settings. They can be swapped at any
// time through Engine.Reconfigure.
type Settings struct {
	EnableCaching            bool   `mapstructure:"enable_caching" json:"enableCaching"`
	RefreshIntervalMinutes   int    `mapstructure:"refresh_interval_minutes" json:"refreshIntervalMinutes"`
	RefreshParallelism       int    `mapstructure:"refresh_parallelism" json:"refreshParallelism"`
	MinRequestDelayMs        int    `mapstructure:"min_request_delay_ms" json:"minRequestDelayMs"`
	EnableRetry              bool   `mapstructure:"enable_retry" json:"enableRetry"`
	RetryMaxAttempts         int    `mapstructure:"retry_max_attempts" json:"retryMaxAttempts"`
	RetryInitialDelayMs      int    `mapstructure:"retry_initial_delay_ms" json:"retryInitialDelayMs"`
	FailureCacheTTLHours     int    `mapstructure:"failure_cache_ttl_hours" json:"failureCacheTtlHours"`
	ThrowOnPersistentFailure bool   `mapstructure:"throw_on_persistent_failure" json:"throwOnPersistentFailure"`
	EnableArtwork            bool   `mapstructure:"enable_artwork" json:"enableArtwork"`
	TitleOverrides           string `mapstructure:"title_overrides" json:"titleOverrides"`

	// Upstream panel.
	BaseURL  string `mapstructure:"base_url" json:"baseUrl"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"-"`
	// Categories limits the refresh to these category ids; empty means all.
	Categories []int `mapstructure:"categories" json:"categories"`
	// EntryTTLHours is the lifetime of cached catalog entries.
	EntryTTLHours int `mapstructure:"entry_ttl_hours" json:"entryTtlHours"`
}

// Ranges enforced by Normalize.
const (
	MinParallelism       = 1
	MaxParallelism       = 10
	MaxRequestDelayMs    = 1000
	MaxRetryAttempts     = 10
	MinRetryDelayMs      = 100
	MaxRetryDelayMs      = 10000
	MinFailureTTLHours   = 1
	MaxFailureTTLHours   = 168
	MaxEntryTTLHours     = 24 * 30
	MaxRefreshIntervalMn = 7 * 24 * 60
)

func DefaultSettings() Settings {
	return Settings{
		EnableCaching:          true,
		RefreshIntervalMinutes: 360,
		RefreshParallelism:     3,
		MinRequestDelayMs:      100,
		EnableRetry:            true,
		RetryMaxAttempts:       3,
		RetryInitialDelayMs:    1000,
		FailureCacheTTLHours:   24,
		EnableArtwork:          true,
		EntryTTLHours:          24,
	}
}

// Normalize clamps every ranged field into its allowed range.
func (s Settings) Normalize() Settings {
	s.RefreshParallelism = clamp(s.RefreshParallelism, MinParallelism, MaxParallelism)
	s.MinRequestDelayMs = clamp(s.MinRequestDelayMs, 0, MaxRequestDelayMs)
	s.RetryMaxAttempts = clamp(s.RetryMaxAttempts, 0, MaxRetryAttempts)
	s.RetryInitialDelayMs = clamp(s.RetryInitialDelayMs, MinRetryDelayMs, MaxRetryDelayMs)
	s.FailureCacheTTLHours = clamp(s.FailureCacheTTLHours, MinFailureTTLHours, MaxFailureTTLHours)
	s.EntryTTLHours = clamp(s.EntryTTLHours, 1, MaxEntryTTLHours)
	s.RefreshIntervalMinutes = clamp(s.RefreshIntervalMinutes, 0, MaxRefreshIntervalMn)
	return s
}

// CacheRelevantHash fingerprints the fields that change what gets cached:
// credentials, category selection, the artwork toggle and the overrides.
// Category order does not matter.
func (s Settings) CacheRelevantHash() string {
	cats := append([]int(nil), s.Categories...)
	sort.Ints(cats)
	parts := make([]string, 0, 5+len(cats))
	parts = append(parts, s.BaseURL, s.Username, s.Password,
		strconv.FormatBool(s.EnableArtwork), s.TitleOverrides)
	for _, c := range cats {
		parts = append(parts, strconv.Itoa(c))
	}
	return util.ShortHash(parts...)
}

func (s Settings) RetryPolicy() retry.Policy {
	return retry.Policy{
		Enabled:                  s.EnableRetry,
		MaxAttempts:              s.RetryMaxAttempts,
		InitialDelay:             time.Duration(s.RetryInitialDelayMs) * time.Millisecond,
		ThrowOnPersistentFailure: s.ThrowOnPersistentFailure,
	}
}

func (s Settings) MinRequestDelay() time.Duration {
	return time.Duration(s.MinRequestDelayMs) * time.Millisecond
}

func (s Settings) FailureTTL() time.Duration {
	return time.Duration(s.FailureCacheTTLHours) * time.Hour
}

func (s Settings) EntryTTL() time.Duration {
	return time.Duration(s.EntryTTLHours) * time.Hour
}

// RefreshInterval is zero when scheduled refreshes are off.
func (s Settings) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshIntervalMinutes) * time.Minute
}

// SelectsCategory reports whether id is part of the refresh.
func (s Settings) SelectsCategory(id int) bool {
	if len(s.Categories) == 0 {
		return true
	}
	for _, c := range s.Categories {
		if c == id {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
