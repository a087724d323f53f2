package store

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	c "github.com/unkn0wn-root/catalogcache/codec"
	gen "github.com/unkn0wn-root/catalogcache/genstore"
	"github.com/unkn0wn-root/catalogcache/provider/memory"
)

type show struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestStore(t *testing.T, mp *memory.Provider, opt func(*Options)) *Store {
	t.Helper()
	opts := Options{Provider: mp, Fingerprint: "fp1"}
	if opt != nil {
		opt(&opts)
	}
	s, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewRequiresProvider(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err != ErrNilProvider {
		t.Fatalf("want ErrNilProvider, got %v", err)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(), nil)

	if _, ok, err := s.Get(ctx, "categories"); err != nil || ok {
		t.Fatalf("Get miss expected, ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "categories", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(ctx, "categories")
	if err != nil || !ok || string(got) != "payload" {
		t.Fatalf("Get after set: ok=%v err=%v got=%q", ok, err, got)
	}
}

func TestPrefixCarriesFingerprintAndGeneration(t *testing.T) {
	s := newTestStore(t, memory.New(), nil)
	if p := s.CurrentPrefix(); p != "catalog:fp1:g0:" {
		t.Fatalf("unexpected prefix %q", p)
	}
}

// After a bump every key written earlier misses, although nothing was deleted.
func TestBumpGenerationOrphansOldKeys(t *testing.T) {
	ctx := context.Background()
	mp := memory.New()
	s := newTestStore(t, mp, nil)

	for _, k := range []string{"categories", "series:1", "seasons:10"} {
		if err := s.Set(ctx, k, []byte(k), time.Hour); err != nil {
			t.Fatal(err)
		}
	}
	before := s.CurrentPrefix()

	g, err := s.BumpGeneration(ctx)
	if err != nil || g != 1 {
		t.Fatalf("BumpGeneration: g=%d err=%v", g, err)
	}
	if s.CurrentPrefix() == before {
		t.Fatalf("prefix did not change")
	}
	if mp.Len() != 3 {
		t.Fatalf("bump must not delete entries, have %d", mp.Len())
	}
	for _, k := range []string{"categories", "series:1", "seasons:10"} {
		if _, ok, err := s.Get(ctx, k); err != nil || ok {
			t.Fatalf("key %q should miss after bump, ok=%v err=%v", k, ok, err)
		}
	}

	if err := s.Set(ctx, "categories", []byte("fresh"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if got, ok, _ := s.Get(ctx, "categories"); !ok || string(got) != "fresh" {
		t.Fatalf("new generation write not readable: ok=%v got=%q", ok, got)
	}
}

func TestFingerprintSwitchIsolatesConfigurations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(), nil)

	if err := s.Set(ctx, "categories", []byte("A"), time.Hour); err != nil {
		t.Fatal(err)
	}
	s.SetFingerprint("fp2")
	if _, ok, _ := s.Get(ctx, "categories"); ok {
		t.Fatalf("fp2 must not see fp1 data")
	}

	// Equal fingerprints share keys.
	s.SetFingerprint("fp1")
	if got, ok, _ := s.Get(ctx, "categories"); !ok || string(got) != "A" {
		t.Fatalf("switching back to fp1 should hit, ok=%v got=%q", ok, got)
	}
}

func TestExpiredEntryMissesAndHeals(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	mp := memory.New()
	s := newTestStore(t, mp, func(o *Options) { o.Now = clk.Now })

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	clk.Advance(2 * time.Minute)

	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expired entry should miss, ok=%v err=%v", ok, err)
	}
	if mp.Len() != 0 {
		t.Fatalf("expired entry should be deleted, have %d", mp.Len())
	}
}

func TestCorruptEntryIsDeleted(t *testing.T) {
	ctx := context.Background()
	mp := memory.New()
	s := newTestStore(t, mp, nil)

	sk := s.CurrentPrefix() + "bad"
	if _, err := mp.Set(ctx, sk, []byte("not-wire-format"), 0, time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Get(ctx, "bad"); err != nil || ok {
		t.Fatalf("corrupt entry should miss, ok=%v err=%v", ok, err)
	}
	if _, ok, _ := mp.Get(ctx, sk); ok {
		t.Fatalf("corrupt entry was not deleted")
	}
}

func TestDisabledStoreIgnoresWrites(t *testing.T) {
	ctx := context.Background()
	mp := memory.New()
	s := newTestStore(t, mp, func(o *Options) { o.Disabled = true })

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if mp.Len() != 0 {
		t.Fatalf("disabled store wrote %d entries", mp.Len())
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("disabled store must miss")
	}
}

func TestSyncPicksUpSharedBumps(t *testing.T) {
	ctx := context.Background()
	shared := gen.NewLocalGenStore()
	mp := memory.New()
	a := newTestStore(t, mp, func(o *Options) { o.GenStore = shared })
	b := newTestStore(t, mp, func(o *Options) { o.GenStore = shared })

	if _, err := a.BumpGeneration(ctx); err != nil {
		t.Fatal(err)
	}
	if b.Generation() != 0 {
		t.Fatalf("b should not move before Sync")
	}
	if err := b.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if b.CurrentPrefix() != a.CurrentPrefix() {
		t.Fatalf("prefixes differ after Sync: %q vs %q", a.CurrentPrefix(), b.CurrentPrefix())
	}
}

func TestTableDecodeFailureSelfHeals(t *testing.T) {
	ctx := context.Background()
	mp := memory.New()
	s := newTestStore(t, mp, nil)
	tbl := NewTable[show](s, c.JSON[show]{})

	if err := s.Set(ctx, "series:1", []byte("{not json"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := tbl.Get(ctx, "series:1"); err != nil || ok {
		t.Fatalf("undecodable value should miss, ok=%v err=%v", ok, err)
	}
	if mp.Len() != 0 {
		t.Fatalf("undecodable value should be deleted")
	}

	want := show{ID: 1, Name: "Show"}
	if err := tbl.Set(ctx, "series:1", want, 0); err != nil {
		t.Fatal(err)
	}
	got, ok, err := tbl.Get(ctx, "series:1")
	if err != nil || !ok || got != want {
		t.Fatalf("table round trip: ok=%v err=%v got=%+v", ok, err, got)
	}
}

func TestConcurrentReadersDuringBump(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(), nil)
	_ = s.Set(ctx, "k", []byte("v"), time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				p := s.CurrentPrefix()
				if !strings.HasPrefix(p, "catalog:fp1:g") {
					t.Errorf("torn prefix %q", p)
					return
				}
				_, _, _ = s.Get(ctx, "k")
			}
		}()
	}
	for i := 0; i < 20; i++ {
		if _, err := s.BumpGeneration(ctx); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
}

func TestUsageCountsHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(), nil)

	_ = s.Set(ctx, "series:1", []byte("a"), time.Minute)
	_, _, _ = s.Get(ctx, "series:1")
	_, _, _ = s.Get(ctx, "series:2")

	u, ok := s.Usage()
	if !ok {
		t.Fatalf("memory provider should report usage")
	}
	if u.Backend != "memory" || u.Entries != 1 || u.Hits != 1 || u.Misses != 1 {
		t.Fatalf("unexpected usage %+v", u)
	}
	if u.Bytes <= 1 {
		t.Fatalf("bytes should include the envelope, got %d", u.Bytes)
	}
}

func TestPingInProcessProvider(t *testing.T) {
	s := newTestStore(t, memory.New(), nil)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

// A scope pinned to one configuration never writes into the next one's
// namespace, but keeps following generation bumps of its own.
func TestScopeDropsWritesAfterFingerprintSwitch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(), nil)

	old := s.Scope("fp1")
	if err := old.Set(ctx, "categories", []byte("old"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.SetFingerprint("fp2")
	if old.Live() {
		t.Fatalf("scope should be retired after the switch")
	}
	if err := old.Set(ctx, "categories", []byte("late"), time.Minute); err != ErrScopeRetired {
		t.Fatalf("want ErrScopeRetired, got %v", err)
	}
	if _, ok, _ := s.Get(ctx, "categories"); ok {
		t.Fatalf("late write leaked into the new namespace")
	}

	cur := s.Scope("fp2")
	if _, err := s.BumpGeneration(ctx); err != nil {
		t.Fatal(err)
	}
	if err := cur.Set(ctx, "categories", []byte("new"), time.Minute); err != nil {
		t.Fatalf("Set after bump: %v", err)
	}
	if got, ok, _ := s.Get(ctx, "categories"); !ok || string(got) != "new" {
		t.Fatalf("scoped write not readable after bump: ok=%v got=%q", ok, got)
	}
}

func TestBoundTableWritesThroughScope(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(), nil)
	tbl := NewTable(s, c.JSON[show]{})
	bound := tbl.Bind(s.Scope("fp1"))

	if err := bound.Set(ctx, "series:1", show{ID: 1, Name: "A"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := tbl.Get(ctx, "series:1"); !ok || v.Name != "A" {
		t.Fatalf("bound write not visible: ok=%v v=%+v", ok, v)
	}
	s.SetFingerprint("fp2")
	if err := bound.Set(ctx, "series:1", show{ID: 1, Name: "B"}, time.Minute); err != ErrScopeRetired {
		t.Fatalf("want ErrScopeRetired, got %v", err)
	}
	if _, ok, _ := tbl.Get(ctx, "series:1"); ok {
		t.Fatalf("retired scope wrote into the new namespace")
	}
}
