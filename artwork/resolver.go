// Package artwork resolves series artwork through a metadata search provider,
// honoring manual title overrides, and caches the result in the versioned store.
package artwork

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/unkn0wn-root/catalogcache/catalog"
	"github.com/unkn0wn-root/catalogcache/logging"
	"github.com/unkn0wn-root/catalogcache/metadata"
	"github.com/unkn0wn-root/catalogcache/store"
)

type Options struct {
	Searcher metadata.Searcher
	Table    *store.Table[*wrapperspb.StringValue]
	// Clean turns a raw catalog title into a search name. Default StripTags.
	Clean func(string) string
	TTL   time.Duration
	// RankByTitle reorders name-search results by edit distance to the term.
	// Off by default: the provider's relevance order is used as-is.
	RankByTitle bool
	Logger      logging.Logger
	// OnMissing is called when no image could be found for a title.
	OnMissing func(entityID int, title string)
}

type Resolver struct {
	search    metadata.Searcher
	table     *store.Table[*wrapperspb.StringValue]
	clean     func(string) string
	ttl       time.Duration
	rank      bool
	log       logging.Logger
	onMissing func(int, string)
}

func New(opts Options) *Resolver {
	r := &Resolver{
		search:    opts.Searcher,
		table:     opts.Table,
		clean:     opts.Clean,
		ttl:       opts.TTL,
		rank:      opts.RankByTitle,
		log:       logging.OrNop(opts.Logger),
		onMissing: opts.OnMissing,
	}
	if r.clean == nil {
		r.clean = StripTags
	}
	return r
}

// Resolve finds an image URL for rawTitle and caches it under entityID.
// Override ids are tried first; name search over SearchTerms follows. Search
// errors count as "no image". Misses are not cached.
func (r *Resolver) Resolve(ctx context.Context, entityID int, rawTitle string, overrides Overrides) (string, bool) {
	name := r.clean(rawTitle)
	if name == "" || r.search == nil {
		return "", false
	}

	if id, ok := overrides.Lookup(name); ok {
		res, err := r.call(ctx, func(ctx context.Context) ([]metadata.Result, error) {
			return r.search.SearchByExternalID(ctx, id)
		})
		if err != nil {
			r.log.Warn("artwork override lookup failed", logging.Fields{"title": name, "override": id, "err": err})
		} else if url, ok := firstUsable(res); ok {
			r.store(ctx, entityID, url)
			return url, true
		} else {
			r.log.Info("artwork override yielded no image; falling back to search", logging.Fields{"title": name, "override": id})
		}
	}

	for _, term := range SearchTerms(name) {
		if ctx.Err() != nil {
			return "", false
		}
		res, err := r.call(ctx, func(ctx context.Context) ([]metadata.Result, error) {
			return r.search.SearchByName(ctx, term)
		})
		if err != nil {
			r.log.Warn("artwork search failed", logging.Fields{"term": term, "err": err})
			continue
		}
		if r.rank {
			res = rankByTitle(term, res)
		}
		if url, ok := firstUsable(res); ok {
			r.store(ctx, entityID, url)
			return url, true
		}
	}

	r.log.Warn("no artwork found", logging.Fields{"series_id": entityID, "title": name})
	if r.onMissing != nil {
		r.onMissing(entityID, name)
	}
	return "", false
}

// call runs one provider request, converting a panic in the provider client
// into an error so a bad client cannot abort the refresh loop.
func (r *Resolver) call(ctx context.Context, fn func(context.Context) ([]metadata.Result, error)) (res []metadata.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("metadata provider panic: %v", p)
		}
	}()
	return fn(ctx)
}

func (r *Resolver) store(ctx context.Context, entityID int, url string) {
	if r.table == nil {
		return
	}
	err := r.table.Set(ctx, catalog.KeyArtwork(entityID), wrapperspb.String(url), r.ttl)
	if err != nil && !errors.Is(err, store.ErrScopeRetired) {
		r.log.Warn("artwork cache write failed", logging.Fields{"series_id": entityID, "err": err})
	}
}

func firstUsable(res []metadata.Result) (string, bool) {
	for _, x := range res {
		if usable(x.ImageURL) {
			return x.ImageURL, true
		}
	}
	return "", false
}

// rankByTitle returns res ordered by edit distance to term. The provider's
// slice is left untouched.
func rankByTitle(term string, res []metadata.Result) []metadata.Result {
	t := strings.ToLower(term)
	out := slices.Clone(res)
	sort.SliceStable(out, func(i, j int) bool {
		return fuzzy.LevenshteinDistance(t, strings.ToLower(out[i].Name)) <
			fuzzy.LevenshteinDistance(t, strings.ToLower(out[j].Name))
	})
	return out
}
