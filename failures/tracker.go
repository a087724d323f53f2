// Package failures remembers request targets that exhausted their retries,
// so later attempts within the TTL window skip the network entirely.
package failures

import (
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/catalogcache/logging"
)

const (
	DefaultTTL = 24 * time.Hour
	maxSamples = 10
)

// Record describes one persistently failing target.
type Record struct {
	Target     string
	Details    string
	RecordedAt time.Time
	ExpiresAt  time.Time
}

// Stats is a point-in-time summary for the end-of-refresh log line.
type Stats struct {
	Count   int      `json:"count"`
	Samples []string `json:"samples,omitempty"` // most recent first, at most 10
}

// Tracker is keyed by a 64-bit hash of the target. Collisions only cause a
// skipped request, never a wrong result, so a non-cryptographic hash is fine.
type Tracker struct {
	mu      sync.RWMutex
	records map[uint64]Record
	ttl     time.Duration
	log     logging.Logger
	now     func() time.Time
}

type Option func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(ttl time.Duration, log logging.Logger, opts ...Option) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	t := &Tracker{
		records: make(map[uint64]Record),
		ttl:     ttl,
		log:     logging.OrNop(log),
		now:     time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// SetTTL changes the window applied to failures recorded from now on.
func (t *Tracker) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	t.mu.Lock()
	t.ttl = ttl
	t.mu.Unlock()
}

func (t *Tracker) IsKnownFailure(target string) bool {
	k := xxhash.Sum64String(target)
	t.mu.RLock()
	r, ok := t.records[k]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	if !t.now().Before(r.ExpiresAt) {
		t.mu.Lock()
		if cur, ok := t.records[k]; ok && !t.now().Before(cur.ExpiresAt) {
			delete(t.records, k)
		}
		t.mu.Unlock()
		return false
	}
	return true
}

func (t *Tracker) RecordFailure(target, details string) {
	now := t.now()
	t.mu.Lock()
	t.records[xxhash.Sum64String(target)] = Record{
		Target:     target,
		Details:    details,
		RecordedAt: now,
		ExpiresAt:  now.Add(t.ttl),
	}
	t.mu.Unlock()
	t.log.Debug("recorded persistent failure", logging.Fields{"target": target, "details": details})
}

// Stats prunes expired records and reports the live ones.
func (t *Tracker) Stats() Stats {
	now := t.now()
	t.mu.Lock()
	live := make([]Record, 0, len(t.records))
	for k, r := range t.records {
		if !now.Before(r.ExpiresAt) {
			delete(t.records, k)
			continue
		}
		live = append(live, r)
	}
	t.mu.Unlock()

	sort.Slice(live, func(i, j int) bool { return live[i].RecordedAt.After(live[j].RecordedAt) })
	st := Stats{Count: len(live)}
	for i := 0; i < len(live) && i < maxSamples; i++ {
		st.Samples = append(st.Samples, live[i].Target)
	}
	return st
}
