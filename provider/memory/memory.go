// Package memory is a map-backed Provider for tests and tiny catalogs.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	pr "github.com/unkn0wn-root/catalogcache/provider"
)

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Reporter = (*Provider)(nil)
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type Provider struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time

	hits, misses atomic.Uint64
}

func New() *Provider {
	return &Provider{m: make(map[string]entry), now: time.Now}
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()
	if !ok {
		p.misses.Add(1)
		return nil, false, nil
	}
	if !e.exp.IsZero() && p.now().After(e.exp) {
		p.mu.Lock()
		delete(p.m, key)
		p.mu.Unlock()
		p.misses.Add(1)
		return nil, false, nil
	}
	p.hits.Add(1)
	return e.v, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = p.now().Add(ttl)
	}
	p.mu.Lock()
	p.m[key] = entry{v: value, exp: exp}
	p.mu.Unlock()
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

// Len counts stored entries, including orphaned ones from old namespaces.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.m)
}

func (p *Provider) Usage() pr.Usage {
	p.mu.RLock()
	var n int64
	for _, e := range p.m {
		n += int64(len(e.v))
	}
	u := pr.Usage{Backend: "memory", Entries: int64(len(p.m)), Bytes: n}
	p.mu.RUnlock()
	u.Hits, u.Misses = p.hits.Load(), p.misses.Load()
	return u
}

func (p *Provider) Close(_ context.Context) error { return nil }
