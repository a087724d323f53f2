// Package ristretto is the default in-process catalog backend.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/catalogcache/provider"
)

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Reporter = (*Provider)(nil)
)

// Cost is the encoded entry size in bytes, so MaxBytes is a memory budget
// for the whole catalog including artwork records.
type Provider struct {
	c *rc.Cache
}

type Config struct {
	MaxBytes int64
	// Counters tracks admission frequency; ristretto wants ~10x the number
	// of entries the budget can hold.
	Counters int64
}

// ForBudget sizes the counters for small catalog entries (~1KB average)
// within maxBytes. maxBytes <= 0 selects 256MB.
func ForBudget(maxBytes int64) Config {
	if maxBytes <= 0 {
		maxBytes = 256 << 20
	}
	return Config{MaxBytes: maxBytes, Counters: max(maxBytes/1024*10, 100_000)}
}

func New(cfg Config) (*Provider, error) {
	if cfg.MaxBytes <= 0 || cfg.Counters <= 0 {
		return nil, errors.New("ristretto: MaxBytes and Counters must be positive")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.Counters,
		MaxCost:     cfg.MaxBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set waits for the write buffer so an entity written by a refresh is
// readable by the very next lookup, e.g. an artwork record checked right
// after its series was stored.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if cost <= 0 {
		cost = int64(len(value))
	}
	ok := p.c.SetWithTTL(key, value, cost, ttl)
	p.c.Wait()
	return ok, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) Usage() pr.Usage {
	m := p.c.Metrics
	return pr.Usage{
		Backend: "ristretto",
		Entries: int64(m.KeysAdded()) - int64(m.KeysEvicted()),
		Bytes:   int64(m.CostAdded()) - int64(m.CostEvicted()),
		Hits:    m.Hits(),
		Misses:  m.Misses(),
	}
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}
