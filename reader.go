package catalogcache

import (
	"context"

	"github.com/unkn0wn-root/catalogcache/catalog"
)

// Reads go straight to the current cache namespace. They never block on a
// refresh and are safe from any number of goroutines.

func (e *Engine) Categories(ctx context.Context) (catalog.Categories, bool, error) {
	return e.t.categories.Get(ctx, catalog.KeyCategories)
}

func (e *Engine) Series(ctx context.Context, categoryID int) (catalog.SeriesList, bool, error) {
	return e.t.series.Get(ctx, catalog.KeySeries(categoryID))
}

func (e *Engine) Seasons(ctx context.Context, seriesID int) (catalog.Seasons, bool, error) {
	return e.t.seasons.Get(ctx, catalog.KeySeasons(seriesID))
}

func (e *Engine) Episodes(ctx context.Context, seriesID, seasonID int) (catalog.Episodes, bool, error) {
	return e.t.episodes.Get(ctx, catalog.KeyEpisodes(seriesID, seasonID))
}

func (e *Engine) Artwork(ctx context.Context, seriesID int) (string, bool, error) {
	v, ok, err := e.t.artwork.Get(ctx, catalog.KeyArtwork(seriesID))
	if err != nil || !ok {
		return "", false, err
	}
	return v.GetValue(), true, nil
}
