package catalogcache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/unkn0wn-root/catalogcache/artwork"
	"github.com/unkn0wn-root/catalogcache/catalog"
	"github.com/unkn0wn-root/catalogcache/config"
	"github.com/unkn0wn-root/catalogcache/logging"
	"github.com/unkn0wn-root/catalogcache/retry"
	"github.com/unkn0wn-root/catalogcache/store"
)

// Progress bands per phase.
const (
	bandCategories = 0.05
	bandSeriesList = 0.20
	bandTrees      = 0.80
)

// refresh is the state of one run. It is owned by the run goroutine; the
// counters touched by phase 3 workers are atomic.
type refresh struct {
	e       *Engine
	id      uint64
	src     catalog.Source
	s       config.Settings
	t       tables // writes pinned to the run's fingerprint
	exec    *retry.Executor
	gate    *rate.Limiter
	ttl     time.Duration
	log     logging.Logger
	treeEnd float64

	categories     int
	series         []catalog.Series
	seriesFailed   atomic.Int64
	seasons        atomic.Int64
	episodes       atomic.Int64
	treesDone      atomic.Int64
	artworkFound   int
	artworkMissing int
}

func (e *Engine) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, id uint64, trigger string, src catalog.Source, s config.Settings, scope store.Scope) {
	defer close(done)
	defer e.retire(id, cancel)

	r := e.newRefresh(id, src, s, scope)
	started := e.now()
	err := r.runSafely(ctx)

	sum := Summary{
		RunID:          id,
		Trigger:        trigger,
		Categories:     r.categories,
		Series:         len(r.series),
		SeriesFailed:   int(r.seriesFailed.Load()),
		Seasons:        int(r.seasons.Load()),
		Episodes:       int(r.episodes.Load()),
		ArtworkFound:   r.artworkFound,
		ArtworkMissing: r.artworkMissing,
		Failures:       e.tracker.Stats(),
		StartedAt:      started,
		FinishedAt:     e.now(),
	}

	switch {
	case errors.Is(err, context.Canceled):
		sum.Outcome = OutcomeCancelled
		e.progress.finish(sum.FinishedAt, StatusCancelled, -1)
		r.log.Info("refresh cancelled", logging.Fields{"series": sum.Series, "seasons": sum.Seasons})
	case err != nil:
		sum.Outcome, sum.Err, sum.Error = OutcomeFailed, err, err.Error()
		e.progress.finish(sum.FinishedAt, StatusFailed, -1)
		r.log.Error("refresh failed", logging.Fields{"err": err})
	default:
		sum.Outcome = OutcomeCompleted
		e.progress.finish(sum.FinishedAt, statusCompleted(sum.Series), 1)
		r.log.Info("refresh completed", logging.Fields{
			"categories":      sum.Categories,
			"series":          sum.Series,
			"series_failed":   sum.SeriesFailed,
			"seasons":         sum.Seasons,
			"episodes":        sum.Episodes,
			"artwork_found":   sum.ArtworkFound,
			"artwork_missing": sum.ArtworkMissing,
			"took":            sum.FinishedAt.Sub(started).String(),
		})
	}
	if sum.Failures.Count > 0 {
		r.log.Warn("persistently failing targets", logging.Fields{
			"count":   sum.Failures.Count,
			"samples": sum.Failures.Samples,
		})
	}

	e.summary.Store(&sum)
	e.hooks.RefreshFinished(sum)
	if sum.Outcome == OutcomeCompleted {
		e.Populate("refresh")
	}
}

func (e *Engine) newRefresh(id uint64, src catalog.Source, s config.Settings, scope store.Scope) *refresh {
	log := logging.With(e.log, logging.Fields{"run_id": id})
	opts := []retry.Option{
		retry.WithPersistentHook(e.hooks.PersistentFailure),
	}
	if e.sleep != nil {
		opts = append(opts, retry.WithSleep(e.sleep))
	}
	r := &refresh{
		e:       e,
		id:      id,
		src:     src,
		s:       s,
		t:       e.t.bind(scope),
		exec:    retry.New(s.RetryPolicy(), e.tracker, log, opts...),
		ttl:     s.EntryTTL(),
		log:     log,
		treeEnd: 1,
	}
	if d := s.MinRequestDelay(); d > 0 {
		r.gate = rate.NewLimiter(rate.Every(d), 1)
	}
	if r.artworkEnabled() {
		r.treeEnd = bandTrees
	}
	return r
}

func (r *refresh) artworkEnabled() bool {
	return r.s.EnableArtwork && r.e.search != nil
}

// runSafely turns a panic anywhere in the pipeline into a RefreshError.
func (r *refresh) runSafely(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &RefreshError{RunID: r.id, Phase: "pipeline", Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return r.pipeline(ctx)
}

func (r *refresh) pipeline(ctx context.Context) error {
	cats, err := r.fetchCategories(ctx)
	if err != nil {
		return err
	}
	r.e.progress.set(bandCategories, fmt.Sprintf("Fetched %d categories", len(cats)))

	if err := r.fetchSeriesLists(ctx, cats); err != nil {
		return err
	}
	if err := r.fetchTrees(ctx); err != nil {
		return err
	}
	if r.artworkEnabled() {
		return r.resolveArtwork(ctx)
	}
	return nil
}

// fetch runs one upstream call through the throttle gate and the retry
// executor. A failed target yields ok=false and T's empty value.
func fetch[T catalog.Entity[T]](ctx context.Context, r *refresh, action string, id int, call func(context.Context) (T, error)) (T, bool, error) {
	target := r.src.RequestURL(action, id)
	v, ok, err := retry.Do(ctx, r.exec, target, func(ctx context.Context) (T, error) {
		if r.gate != nil {
			if err := r.gate.Wait(ctx); err != nil {
				var zero T
				return zero, err
			}
		}
		return call(ctx)
	})
	if err != nil || !ok {
		return catalog.EmptyOf[T](), false, err
	}
	return v, true, nil
}

func (r *refresh) fetchCategories(ctx context.Context) (catalog.Categories, error) {
	r.e.progress.set(0, "Fetching categories")
	cats, ok, err := fetch(ctx, r, catalog.ActionCategories, 0, r.src.Categories)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RefreshError{RunID: r.id, Phase: "categories", Err: err}
	}
	if ok {
		r.put(ctx, "categories", func() error {
			return r.t.categories.Set(ctx, catalog.KeyCategories, cats, r.ttl)
		})
	}
	r.categories = len(cats)
	return cats, nil
}

func (r *refresh) fetchSeriesLists(ctx context.Context, cats catalog.Categories) error {
	selected := make(catalog.Categories, 0, len(cats))
	for _, c := range cats {
		if r.s.SelectsCategory(c.ID) {
			selected = append(selected, c)
		}
	}
	seen := make(map[int]struct{})
	for i, c := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}
		list, ok, err := fetch(ctx, r, catalog.ActionSeries, c.ID, func(ctx context.Context) (catalog.SeriesList, error) {
			return r.src.SeriesByCategory(ctx, c.ID)
		})
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			r.log.Warn("series list failed", logging.Fields{"category_id": c.ID, "err": err})
		case ok:
			r.put(ctx, "series", func() error {
				return r.t.series.Set(ctx, catalog.KeySeries(c.ID), list, r.ttl)
			})
		}
		for _, s := range list {
			if _, dup := seen[s.ID]; dup {
				continue
			}
			seen[s.ID] = struct{}{}
			r.series = append(r.series, s)
		}
		frac := bandCategories + (bandSeriesList-bandCategories)*float64(i+1)/float64(len(selected))
		r.e.progress.set(frac, fmt.Sprintf("Fetched series lists: %d/%d categories", i+1, len(selected)))
	}
	r.e.progress.set(bandSeriesList, fmt.Sprintf("Found %d series", len(r.series)))
	return nil
}

// fetchTrees fetches seasons and episodes for every series with at most
// RefreshParallelism workers. One bad series never stops the batch.
func (r *refresh) fetchTrees(ctx context.Context) error {
	total := len(r.series)
	var g errgroup.Group
	g.SetLimit(r.s.RefreshParallelism)
	for _, s := range r.series {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.fetchTree(ctx, s)
			n := r.treesDone.Add(1)
			frac := bandSeriesList + (r.treeEnd-bandSeriesList)*float64(n)/float64(total)
			r.e.progress.set(frac, fmt.Sprintf("Fetched seasons: %d/%d series", n, total))
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func (r *refresh) fetchTree(ctx context.Context, s catalog.Series) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.seriesFailed.Add(1)
			r.log.Error("series processing panicked", logging.Fields{"series_id": s.ID, "panic": fmt.Sprint(p)})
		}
	}()

	info, ok, err := fetch(ctx, r, catalog.ActionSeriesInfo, s.ID, func(ctx context.Context) (catalog.SeriesInfo, error) {
		return r.src.SeriesInfo(ctx, s.ID)
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil || !ok {
		r.seriesFailed.Add(1)
		if err != nil {
			r.log.Warn("series skipped", logging.Fields{"series_id": s.ID, "err": err})
		}
		return
	}

	seasons := completeSeasons(s.ID, info)
	r.put(ctx, "seasons", func() error {
		return r.t.seasons.Set(ctx, catalog.KeySeasons(s.ID), seasons, r.ttl)
	})
	r.seasons.Add(int64(len(seasons)))
	for _, season := range seasons {
		eps := info.Episodes[season.ID]
		if eps == nil {
			eps = catalog.EmptyOf[catalog.Episodes]()
		}
		r.put(ctx, "episodes", func() error {
			return r.t.episodes.Set(ctx, catalog.KeyEpisodes(s.ID, season.ID), eps, r.ttl)
		})
		r.episodes.Add(int64(len(eps)))
	}
}

// completeSeasons adds a season entry for every season that only appears in
// the episode map.
func completeSeasons(seriesID int, info catalog.SeriesInfo) catalog.Seasons {
	byID := make(map[int]catalog.Season, len(info.Seasons))
	for _, s := range info.Seasons {
		byID[s.ID] = s
	}
	out := make(catalog.Seasons, 0, len(byID))
	for _, id := range info.SeasonIDs() {
		s, ok := byID[id]
		if !ok {
			s = catalog.Season{SeriesID: seriesID, ID: id, Name: fmt.Sprintf("Season %d", id)}
		}
		if s.EpisodeCount == 0 {
			s.EpisodeCount = len(info.Episodes[id])
		}
		out = append(out, s)
	}
	return out
}

// resolveArtwork runs sequentially; the metadata provider client is not
// assumed to be safe for concurrent use.
func (r *refresh) resolveArtwork(ctx context.Context) error {
	res := artwork.New(artwork.Options{
		Searcher:    r.e.search,
		Table:       r.t.artwork,
		Clean:       r.e.clean,
		TTL:         r.ttl,
		RankByTitle: r.e.rank,
		Logger:      r.log,
		OnMissing:   r.e.hooks.ArtworkMissing,
	})
	overrides := artwork.ParseOverrides(r.s.TitleOverrides)
	total := len(r.series)
	for i, s := range r.series {
		if err := ctx.Err(); err != nil {
			return err
		}
		if v, ok, err := r.t.artwork.Get(ctx, catalog.KeyArtwork(s.ID)); err == nil && ok && v.GetValue() != "" {
			r.artworkFound++
		} else if _, ok := res.Resolve(ctx, s.ID, s.Name, overrides); ok {
			r.artworkFound++
		} else if ctx.Err() == nil {
			r.artworkMissing++
		}
		frac := bandTrees + (1-bandTrees)*float64(i+1)/float64(total)
		r.e.progress.set(frac, fmt.Sprintf("Artwork: %d/%d series", i+1, total))
	}
	return ctx.Err()
}

// put performs one cache write; failures are logged and the run continues.
// Writes after the configuration moved on are dropped.
func (r *refresh) put(ctx context.Context, kind string, write func() error) {
	err := write()
	switch {
	case err == nil:
	case errors.Is(err, store.ErrScopeRetired):
		r.log.Debug("write dropped; configuration changed", logging.Fields{"kind": kind})
	case ctx.Err() == nil:
		r.log.Warn("cache write failed", logging.Fields{"kind": kind, "err": err})
	}
}
