// Package catalog holds the cached entities and the contracts between the
// engine, the upstream catalog API and the host reading the cache.
package catalog

import (
	"context"
	"sort"
)

// Entity is satisfied by every cached type. Empty returns the well-defined
// value substituted when the upstream response cannot be used.
type Entity[T any] interface {
	Empty() T
}

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Categories []Category

func (Categories) Empty() Categories { return Categories{} }

type Series struct {
	ID          int     `json:"id"`
	CategoryID  int     `json:"category_id"`
	Name        string  `json:"name"`
	Cover       string  `json:"cover,omitempty"`
	Plot        string  `json:"plot,omitempty"`
	Genre       string  `json:"genre,omitempty"`
	ReleaseDate string  `json:"release_date,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
}

type SeriesList []Series

func (SeriesList) Empty() SeriesList { return SeriesList{} }

type Season struct {
	SeriesID     int    `json:"series_id"`
	ID           int    `json:"id"` // season number
	Name         string `json:"name"`
	Cover        string `json:"cover,omitempty"`
	AirDate      string `json:"air_date,omitempty"`
	EpisodeCount int    `json:"episode_count"`
}

type Seasons []Season

func (Seasons) Empty() Seasons { return Seasons{} }

type Episode struct {
	ID                 int    `json:"id"`
	SeriesID           int    `json:"series_id"`
	SeasonID           int    `json:"season_id"`
	Number             int    `json:"number"`
	Title              string `json:"title"`
	ContainerExtension string `json:"container_extension,omitempty"`
	Plot               string `json:"plot,omitempty"`
	DurationSecs       int    `json:"duration_secs,omitempty"`
	Cover              string `json:"cover,omitempty"`
}

type Episodes []Episode

func (Episodes) Empty() Episodes { return Episodes{} }

// SeriesInfo is one series' season/episode tree as returned upstream.
type SeriesInfo struct {
	Seasons  Seasons          `json:"seasons"`
	Episodes map[int]Episodes `json:"episodes"`
}

func (SeriesInfo) Empty() SeriesInfo {
	return SeriesInfo{Seasons: Seasons{}, Episodes: map[int]Episodes{}}
}

// SeasonIDs returns every season id that has a season entry or episodes,
// ascending. Upstreams sometimes list episodes for seasons they omit.
func (s SeriesInfo) SeasonIDs() []int {
	seen := make(map[int]struct{}, len(s.Seasons)+len(s.Episodes))
	for _, se := range s.Seasons {
		seen[se.ID] = struct{}{}
	}
	for id := range s.Episodes {
		seen[id] = struct{}{}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Upstream actions, used to build request targets.
const (
	ActionCategories = "get_series_categories"
	ActionSeries     = "get_series"
	ActionSeriesInfo = "get_series_info"
)

// Source is the remote catalog API. Implementations return the type's Empty
// value (and a nil error) for payloads that do not decode; errors are reserved
// for transport and HTTP status failures.
type Source interface {
	Categories(ctx context.Context) (Categories, error)
	SeriesByCategory(ctx context.Context, categoryID int) (SeriesList, error)
	SeriesInfo(ctx context.Context, seriesID int) (SeriesInfo, error)
	// RequestURL identifies the request for action/id; it keys failure tracking.
	RequestURL(action string, id int) string
}

// Reader is the host-facing read side of the cache. ok=false is a miss.
type Reader interface {
	Categories(ctx context.Context) (Categories, bool, error)
	Series(ctx context.Context, categoryID int) (SeriesList, bool, error)
	Seasons(ctx context.Context, seriesID int) (Seasons, bool, error)
	Episodes(ctx context.Context, seriesID, seasonID int) (Episodes, bool, error)
	Artwork(ctx context.Context, seriesID int) (string, bool, error)
}

// EmptyOf returns T's Empty value without needing an instance.
func EmptyOf[T Entity[T]]() T {
	var zero T
	return zero.Empty()
}
