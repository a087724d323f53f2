package catalogcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/catalogcache/catalog"
	"github.com/unkn0wn-root/catalogcache/config"
	"github.com/unkn0wn-root/catalogcache/failures"
	"github.com/unkn0wn-root/catalogcache/logging"
	"github.com/unkn0wn-root/catalogcache/metadata"
	"github.com/unkn0wn-root/catalogcache/retry"
	"github.com/unkn0wn-root/catalogcache/store"
)

// Engine owns the refresh lifecycle and serves reads from the cache.
type Engine struct {
	newSource  SourceFactory
	store      *store.Store
	search     metadata.Searcher
	tracker    *failures.Tracker
	log        logging.Logger
	hooks      Hooks
	pop        Populator
	t          tables
	clean      func(string) string
	rank       bool
	grace      time.Duration
	popTimeout time.Duration
	sleep      retry.SleepFunc
	now        func() time.Time

	settings atomic.Pointer[config.Settings]
	summary  atomic.Pointer[Summary]
	progress progress

	// mu guards the run state together with everything describing the
	// active run, so they can never disagree.
	mu     sync.Mutex
	state  runState
	runID  uint64
	cancel context.CancelFunc
	done   chan struct{}
	src    catalog.Source
	closed bool
	// pending is a trigger queued by Reconfigure while a run winds down.
	pending string

	root       context.Context
	rootCancel context.CancelFunc
	populating atomic.Bool
	bg         sync.WaitGroup
}

var _ catalog.Reader = (*Engine)(nil)

// TryStartRefresh starts a refresh in the background and reports whether it
// did. It never blocks: when a run is active, caching is disabled or the
// engine is closed it logs and returns false.
func (e *Engine) TryStartRefresh(trigger string) bool {
	s := e.Settings()
	fp := s.CacheRelevantHash()

	e.mu.Lock()
	reason := ""
	switch {
	case e.closed:
		reason = "closed"
	case e.state == stateRefreshing:
		reason = "running"
	case e.state == stateCancelling:
		reason = "cancelling"
	case !s.EnableCaching:
		reason = "disabled"
	case fp != e.store.Fingerprint():
		// Reconfigure has installed settings but not yet their namespace.
		reason = "reconfiguring"
	}
	if reason != "" {
		e.mu.Unlock()
		e.log.Info("refresh not started", logging.Fields{"trigger": trigger, "reason": reason})
		e.hooks.RefreshRejected(trigger, reason)
		return false
	}

	// The run's handle is created and published before the run exists.
	ctx, cancel := context.WithCancel(e.root)
	e.runID++
	id := e.runID
	done := make(chan struct{})
	e.state, e.cancel, e.done = stateRefreshing, cancel, done
	src := e.src
	e.progress.begin(e.now())
	e.mu.Unlock()

	e.log.Info("refresh started", logging.Fields{"run_id": id, "trigger": trigger})
	e.hooks.RefreshStarted(id, trigger)
	go e.run(ctx, cancel, done, id, trigger, src, s, e.store.Scope(fp))
	return true
}

// startOrDefer starts a refresh, or queues trigger to start as soon as the
// active run retires when one is still winding down.
func (e *Engine) startOrDefer(trigger string) bool {
	e.mu.Lock()
	if !e.closed && e.state != stateIdle {
		e.pending = trigger
		id := e.runID
		e.mu.Unlock()
		e.log.Info("refresh deferred until the previous run stops", logging.Fields{"trigger": trigger, "run_id": id})
		return true
	}
	e.mu.Unlock()
	return e.TryStartRefresh(trigger)
}

// CancelRefresh signals the active run, if any. The run stops at its next
// checkpoint and ends with status "Cancelled".
func (e *Engine) CancelRefresh() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateRefreshing {
		return false
	}
	e.state = stateCancelling
	e.cancel()
	e.log.Info("refresh cancellation requested", logging.Fields{"run_id": e.runID})
	return true
}

// Wait blocks until no run is active or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Invalidate makes every cached entry unreachable by bumping the cache
// generation. It does not touch a running refresh; that run keeps writing
// into the new generation.
func (e *Engine) Invalidate(ctx context.Context) error {
	g, err := e.store.BumpGeneration(ctx)
	if err != nil {
		return fmt.Errorf("invalidate: %w", err)
	}
	e.log.Info("cache invalidated", logging.Fields{"generation": g, "prefix": e.store.CurrentPrefix()})
	e.hooks.Invalidated(g)
	return nil
}

// Reconfigure installs new settings. When the cache-relevant fingerprint
// changes it cancels the active run, waits up to the reconfigure grace for
// it to stop, switches the cache namespace and starts a new refresh. A run
// that ignores cancellation past the grace keeps running, but its writes are
// dropped and the new refresh starts the moment it retires. Other changes
// take effect at the next refresh. It reports whether a refresh was started
// or queued.
func (e *Engine) Reconfigure(ctx context.Context, s config.Settings) (bool, error) {
	s = s.Normalize()
	prev := e.Settings()
	fp := s.CacheRelevantHash()
	relevant := prev.CacheRelevantHash() != fp

	var src catalog.Source
	if relevant && e.newSource != nil {
		var err error
		if src, err = e.newSource(s); err != nil {
			return false, fmt.Errorf("reconfigure source: %w", err)
		}
	}

	e.settings.Store(&s)
	e.tracker.SetTTL(s.FailureTTL())
	if !relevant {
		if !s.EnableCaching {
			e.CancelRefresh()
		}
		e.log.Debug("settings updated; cache fingerprint unchanged", nil)
		return false, nil
	}

	if e.CancelRefresh() {
		wctx, cancel := context.WithTimeout(ctx, e.grace)
		err := e.Wait(wctx)
		cancel()
		if err != nil {
			e.log.Warn("previous refresh did not stop within grace period", logging.Fields{"grace": e.grace.String()})
		}
	}

	e.mu.Lock()
	if src != nil {
		e.src = src
	}
	e.store.SetFingerprint(fp)
	e.mu.Unlock()
	e.log.Info("cache fingerprint changed", logging.Fields{"fingerprint": fp})

	if !s.EnableCaching {
		return false, nil
	}
	return e.startOrDefer("reconfigure"), nil
}

// Populate runs the populator in the background unless one is already
// running. It reports whether a populate was started.
func (e *Engine) Populate(trigger string) bool {
	if e.pop == nil || !e.populating.CompareAndSwap(false, true) {
		return false
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.populating.Store(false)
		return false
	}
	e.bg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.bg.Done()
		defer e.populating.Store(false)
		ctx, cancel := context.WithTimeout(e.root, e.popTimeout)
		defer cancel()
		start := e.now()
		if err := e.pop.Populate(ctx, e); err != nil {
			e.log.Warn("catalog populate failed", logging.Fields{"trigger": trigger, "err": err})
			return
		}
		e.log.Info("catalog populated", logging.Fields{"trigger": trigger, "took": e.now().Sub(start).String()})
	}()
	return true
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	refreshing := e.state != stateIdle
	e.mu.Unlock()
	return e.progress.snapshot(refreshing)
}

// LastSummary returns the most recent finished run, if any.
func (e *Engine) LastSummary() (Summary, bool) {
	s := e.summary.Load()
	if s == nil {
		return Summary{}, false
	}
	return *s, true
}

func (e *Engine) Settings() config.Settings { return *e.settings.Load() }

// FailureStats reports targets currently skipped by the failure tracker.
func (e *Engine) FailureStats() failures.Stats { return e.tracker.Stats() }

// CacheStats reports the active namespace, backend usage when the provider
// can tell, and the failure tracker.
func (e *Engine) CacheStats() CacheStats {
	cs := CacheStats{
		Prefix:      e.store.CurrentPrefix(),
		Fingerprint: e.store.Fingerprint(),
		Generation:  e.store.Generation(),
		Failures:    e.tracker.Stats(),
	}
	if u, ok := e.store.Usage(); ok {
		cs.Backend = &u
	}
	return cs
}

// SyncGeneration adopts a generation bumped by another process sharing the
// generation store. Without a shared store it is a no-op.
func (e *Engine) SyncGeneration(ctx context.Context) error {
	before := e.store.Generation()
	if err := e.store.Sync(ctx); err != nil {
		return err
	}
	if g := e.store.Generation(); g != before {
		e.log.Info("adopted shared cache generation", logging.Fields{"from": before, "to": g})
		e.hooks.Invalidated(g)
	}
	return nil
}

// Healthy reports whether the cache backend is reachable.
func (e *Engine) Healthy(ctx context.Context) error { return e.store.Ping(ctx) }

// Close cancels any run, waits for it and for background populates, then
// closes the store.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	e.mu.Unlock()

	e.CancelRefresh()
	e.rootCancel()
	if err := e.Wait(ctx); err != nil {
		return err
	}
	bgDone := make(chan struct{})
	go func() { e.bg.Wait(); close(bgDone) }()
	select {
	case <-bgDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.store.Close(ctx)
}

// retire returns the guard to Idle if id is still the active run, then
// releases the run's own handle and starts a queued refresh. A newer run's
// handle is never touched.
func (e *Engine) retire(id uint64, cancel context.CancelFunc) {
	var restart string
	e.mu.Lock()
	if e.runID == id {
		e.state = stateIdle
		e.cancel = nil
		e.done = nil
		restart, e.pending = e.pending, ""
	}
	e.mu.Unlock()
	cancel()
	if restart != "" {
		e.TryStartRefresh(restart)
	}
}
