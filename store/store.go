// Package store is the versioned cache behind the catalog engine.
//
// Every key lives under a namespace prefix:
//
//	<namespace>:<fingerprint>:g<generation>:<key>
//
// The fingerprint is derived from cache-relevant configuration and the
// generation is a counter in a genstore.GenStore. Changing either one makes
// every older entry unreachable at once; nothing is scanned or deleted, old
// entries simply age out through their TTL.
package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	gen "github.com/unkn0wn-root/catalogcache/genstore"
	"github.com/unkn0wn-root/catalogcache/internal/wire"
	"github.com/unkn0wn-root/catalogcache/logging"
	pr "github.com/unkn0wn-root/catalogcache/provider"
)

const (
	defaultNamespace = "catalog"
	defaultTTL       = 24 * time.Hour
)

var (
	ErrNilProvider = errors.New("store: provider is required")
	// ErrScopeRetired is returned by writes through a Scope whose
	// fingerprint is no longer the store's.
	ErrScopeRetired = errors.New("store: scope fingerprint retired")
)

// Options tune the Store. Only Provider is required.
type Options struct {
	Provider    pr.Provider
	Namespace   string         // "" => "catalog"
	Fingerprint string         // initial fingerprint; "" => "default"
	GenStore    gen.GenStore   // nil => genstore.NewLocalGenStore()
	DefaultTTL  time.Duration  // applied when Set gets ttl <= 0; 0 => 24h
	Logger      logging.Logger // nil => NopLogger
	Disabled    bool           // every read misses, every write is dropped
	Now         func() time.Time
}

// namespace is swapped as a unit so readers never see a fingerprint from one
// configuration paired with a generation from another.
type namespace struct {
	fingerprint string
	gen         uint64
	prefix      string
}

type Store struct {
	ns         string
	provider   pr.Provider
	gens       gen.GenStore
	log        logging.Logger
	defaultTTL time.Duration
	enabled    bool
	now        func() time.Time

	cur atomic.Pointer[namespace]
	// mu serializes prefix writers (bump, fingerprint switch, sync).
	// Readers only load cur.
	mu sync.Mutex
}

func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Provider == nil {
		return nil, ErrNilProvider
	}
	s := &Store{
		ns:         coalesce(opts.Namespace, defaultNamespace),
		provider:   opts.Provider,
		gens:       opts.GenStore,
		log:        logging.OrNop(opts.Logger),
		defaultTTL: coalesce(opts.DefaultTTL, defaultTTL),
		enabled:    !opts.Disabled,
		now:        opts.Now,
	}
	if s.gens == nil {
		s.gens = gen.NewLocalGenStore()
	}
	if s.now == nil {
		s.now = time.Now
	}

	g, err := s.gens.Snapshot(ctx, s.ns)
	if err != nil {
		return nil, err
	}
	s.swap(coalesce(opts.Fingerprint, "default"), g)
	return s, nil
}

func (s *Store) Enabled() bool { return s.enabled }

// CurrentPrefix returns the namespace prefix every Get and Set uses right now.
func (s *Store) CurrentPrefix() string { return s.cur.Load().prefix }

// Generation returns the current invalidation generation.
func (s *Store) Generation() uint64 { return s.cur.Load().gen }

// Fingerprint returns the current configuration fingerprint.
func (s *Store) Fingerprint() string { return s.cur.Load().fingerprint }

// BumpGeneration moves the store into a fresh namespace. It does not touch
// existing entries.
func (s *Store) BumpGeneration(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.gens.Bump(ctx, s.ns)
	if err != nil {
		s.log.Error("generation bump failed", logging.Fields{"ns": s.ns, "err": err})
		return 0, err
	}
	s.swap(s.cur.Load().fingerprint, g)
	s.log.Info("cache generation bumped", logging.Fields{"ns": s.ns, "gen": g})
	return g, nil
}

// SetFingerprint switches to the namespace of another configuration.
func (s *Store) SetFingerprint(fp string) {
	fp = coalesce(fp, "default")
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.cur.Load()
	if cur.fingerprint == fp {
		return
	}
	s.swap(fp, cur.gen)
	s.log.Info("cache fingerprint changed", logging.Fields{"ns": s.ns, "fingerprint": fp})
}

// Sync re-reads the generation from the GenStore, picking up bumps made by
// other processes sharing it.
func (s *Store) Sync(ctx context.Context) error {
	g, err := s.gens.Snapshot(ctx, s.ns)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur := s.cur.Load(); cur.gen != g {
		s.swap(cur.fingerprint, g)
	}
	return nil
}

// Set stores raw bytes under key in the current namespace.
// ttl <= 0 uses the store's default TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.setIn(ctx, s.cur.Load(), key, value, ttl)
}

func (s *Store) setIn(ctx context.Context, cur *namespace, key string, value []byte, ttl time.Duration) error {
	if !s.enabled {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	b := wire.Encode(cur.gen, s.now().Add(ttl), value)
	ok, err := s.provider.Set(ctx, cur.prefix+key, b, int64(len(b)), ttl)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("set rejected by provider (pressure)", logging.Fields{"key": key})
	}
	return nil
}

// Scope pins a configuration fingerprint for one writer, typically a refresh
// run. Writes through it follow generation bumps but are dropped once the
// store has switched to another fingerprint, so a run that outlives its
// configuration never writes into the next configuration's namespace.
type Scope struct {
	s  *Store
	fp string
}

// Scope returns a write scope for fingerprint fp.
func (s *Store) Scope(fp string) Scope {
	return Scope{s: s, fp: coalesce(fp, "default")}
}

func (sc Scope) Fingerprint() string { return sc.fp }

// Live reports whether fp is still the store's fingerprint.
func (sc Scope) Live() bool { return sc.s.cur.Load().fingerprint == sc.fp }

// Set writes key under the pinned fingerprint and the current generation.
// The namespace is loaded once, so the check and the write agree even if the
// fingerprint moves concurrently.
func (sc Scope) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cur := sc.s.cur.Load()
	if cur.fingerprint != sc.fp {
		return ErrScopeRetired
	}
	return sc.s.setIn(ctx, cur, key, value, ttl)
}

// Get returns the raw bytes stored under key in the current namespace.
// Corrupt, expired or foreign-generation entries are deleted and reported as misses.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, _, ok, err := s.get(ctx, key)
	return b, ok, err
}

// get also returns the storage key it read so callers can self-heal the
// exact entry even if the prefix moves meanwhile.
func (s *Store) get(ctx context.Context, key string) ([]byte, string, bool, error) {
	if !s.enabled {
		return nil, "", false, nil
	}
	cur := s.cur.Load()
	k := cur.prefix + key
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil || !ok {
		return nil, k, false, err
	}
	e, err := wire.Decode(raw)
	if err != nil {
		s.heal(ctx, k, "corrupt")
		return nil, k, false, nil
	}
	if e.Gen != cur.gen {
		s.heal(ctx, k, "gen_mismatch")
		return nil, k, false, nil
	}
	if e.Expired(s.now()) {
		s.heal(ctx, k, "expired")
		return nil, k, false, nil
	}
	return e.Payload, k, true, nil
}

// Usage reports backend usage when the provider can tell.
func (s *Store) Usage() (pr.Usage, bool) {
	r, ok := s.provider.(pr.Reporter)
	if !ok {
		return pr.Usage{}, false
	}
	return r.Usage(), true
}

// Ping checks a remote provider. In-process providers are always reachable.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.provider.(pr.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	_ = s.gens.Close(ctx)
	return s.provider.Close(ctx)
}

func (s *Store) heal(ctx context.Context, storageKey, reason string) {
	_ = s.provider.Del(ctx, storageKey)
	s.log.Debug("dropped unreadable entry", logging.Fields{"key": storageKey, "reason": reason})
}

// swap must be called with mu held (or before the Store is shared).
func (s *Store) swap(fp string, g uint64) {
	s.cur.Store(&namespace{
		fingerprint: fp,
		gen:         g,
		prefix:      s.ns + ":" + fp + ":g" + strconv.FormatUint(g, 10) + ":",
	})
}

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
