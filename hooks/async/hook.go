// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/catalogcache"
//	"github.com/unkn0wn-root/catalogcache/hooks/async"
//	"github.com/unkn0wn-root/catalogcache/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    ArtworkMissingEvery:    10, // sample logs: ~every 10th missing artwork
//	    PersistentFailureEvery: 1,  // log every persistent failure
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	engine, _ := catalogcache.New(catalogcache.Options{
//	    Source: src,
//	    Store:  st,
//	    Hooks:  hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/catalogcache"
)

type Hooks struct {
	inner   catalogcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ catalogcache.Hooks = (*Hooks)(nil)

func New(inner catalogcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped counts events discarded because the queue was full.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue after Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) RefreshStarted(id uint64, trigger string) {
	h.try(func() { h.inner.RefreshStarted(id, trigger) })
}
func (h *Hooks) RefreshRejected(trigger, reason string) {
	h.try(func() { h.inner.RefreshRejected(trigger, reason) })
}
func (h *Hooks) RefreshFinished(s catalogcache.Summary) {
	h.try(func() { h.inner.RefreshFinished(s) })
}
func (h *Hooks) Invalidated(g uint64) { h.try(func() { h.inner.Invalidated(g) }) }
func (h *Hooks) ArtworkMissing(id int, title string) {
	h.try(func() { h.inner.ArtworkMissing(id, title) })
}
func (h *Hooks) PersistentFailure(target string, err error) {
	h.try(func() { h.inner.PersistentFailure(target, err) })
}
