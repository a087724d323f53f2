// Package bigcache keeps the catalog off the Go heap, which suits large
// catalogs with many small episode records.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/catalogcache/provider"
)

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Reporter = (*Provider)(nil)
)

// Provider ignores per-entry TTLs: BigCache evicts by LifeWindow only.
// LifeWindow is set to the catalog entry TTL and the store's envelope expiry
// hides anything older, so both bounds agree.
type Provider struct {
	c *bc.BigCache
}

type Config struct {
	EntryTTL    time.Duration
	CleanWindow time.Duration // 0 => EntryTTL/4, at least one minute
	MaxBytes    int64         // 0 = unbounded
}

func New(cfg Config) (*Provider, error) {
	if cfg.EntryTTL <= 0 {
		return nil, errors.New("bigcache: entry TTL must be positive")
	}
	conf := bc.DefaultConfig(cfg.EntryTTL)
	conf.Verbose = false
	conf.CleanWindow = cfg.CleanWindow
	if conf.CleanWindow <= 0 {
		conf.CleanWindow = max(cfg.EntryTTL/4, time.Minute)
	}
	// catalog records are small; the default 500B estimate fits series rows
	conf.MaxEntriesInWindow = 100_000
	if cfg.MaxBytes > 0 {
		conf.HardMaxCacheSize = max(int(cfg.MaxBytes>>20), 1)
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	switch {
	case errors.Is(err, bc.ErrEntryNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	if err := p.c.Set(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	if err := p.c.Delete(key); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		return err
	}
	return nil
}

// Usage reports allocated shard capacity as Bytes; BigCache does not track
// live bytes.
func (p *Provider) Usage() pr.Usage {
	st := p.c.Stats()
	return pr.Usage{
		Backend: "bigcache",
		Entries: int64(p.c.Len()),
		Bytes:   int64(p.c.Capacity()),
		Hits:    uint64(st.Hits),
		Misses:  uint64(st.Misses),
	}
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}
