package catalogcache

import (
	"context"
	"reflect"
	"time"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/unkn0wn-root/catalogcache/catalog"
	c "github.com/unkn0wn-root/catalogcache/codec"
	"github.com/unkn0wn-root/catalogcache/config"
	"github.com/unkn0wn-root/catalogcache/failures"
	"github.com/unkn0wn-root/catalogcache/logging"
	"github.com/unkn0wn-root/catalogcache/metadata"
	"github.com/unkn0wn-root/catalogcache/retry"
	"github.com/unkn0wn-root/catalogcache/store"
)

// Populator materializes the cache into the host's own storage. It is called
// fire-and-forget after each completed refresh and after invalidation.
type Populator interface {
	Populate(ctx context.Context, r catalog.Reader) error
}

// SourceFactory rebuilds the upstream client when credentials change.
type SourceFactory func(config.Settings) (catalog.Source, error)

// Options configure an Engine. Source and Store are required.
type Options struct {
	Source    catalog.Source
	NewSource SourceFactory // nil => Source is kept across Reconfigure
	Store     *store.Store
	Searcher  metadata.Searcher // nil => artwork phase is skipped
	Settings  config.Settings   // zero value => config.DefaultSettings()

	Logger    logging.Logger    // if nil, NopLogger is used
	Hooks     Hooks             // if nil, NopHooks is used
	Populator Populator         // optional
	Tracker   *failures.Tracker // nil => new tracker with Settings.FailureTTL()

	Codec            string // entity codec name (see codec.Named); "" => msgpack
	MaxDecodeBytes   int    // 0 => unlimited
	CleanTitle       func(string) string
	RankByTitle      bool            // reorder artwork results by edit distance
	ReconfigureGrace time.Duration   // 0 => 5s
	PopulateTimeout  time.Duration   // 0 => 5m
	Sleep            retry.SleepFunc // backoff sleep; nil => timer
	Now              func() time.Time
}

type tables struct {
	categories *store.Table[catalog.Categories]
	series     *store.Table[catalog.SeriesList]
	seasons    *store.Table[catalog.Seasons]
	episodes   *store.Table[catalog.Episodes]
	artwork    *store.Table[*wrapperspb.StringValue]
}

func newTables(s *store.Store, name string, maxDecode int) (tables, error) {
	var t tables
	cc, err := c.Named[catalog.Categories](name, maxDecode)
	if err != nil {
		return t, err
	}
	sc, err := c.Named[catalog.SeriesList](name, maxDecode)
	if err != nil {
		return t, err
	}
	ssc, err := c.Named[catalog.Seasons](name, maxDecode)
	if err != nil {
		return t, err
	}
	ec, err := c.Named[catalog.Episodes](name, maxDecode)
	if err != nil {
		return t, err
	}
	t.categories = store.NewTable(s, cc)
	t.series = store.NewTable(s, sc)
	t.seasons = store.NewTable(s, ssc)
	t.episodes = store.NewTable(s, ec)
	t.artwork = store.NewTable[*wrapperspb.StringValue](s, c.StringValue())
	return t, nil
}

// bind returns the tables with writes pinned to sc.
func (t tables) bind(sc store.Scope) tables {
	return tables{
		categories: t.categories.Bind(sc),
		series:     t.series.Bind(sc),
		seasons:    t.seasons.Bind(sc),
		episodes:   t.episodes.Bind(sc),
		artwork:    t.artwork.Bind(sc),
	}
}

// New builds an Engine. The store's fingerprint is set from the settings.
// No refresh is started.
func New(opts Options) (*Engine, error) {
	if opts.Source == nil {
		return nil, ErrNilSource
	}
	if opts.Store == nil {
		return nil, ErrNilStore
	}
	settings := opts.Settings
	if isZeroSettings(settings) {
		settings = config.DefaultSettings()
	}
	settings = settings.Normalize()

	log := logging.OrNop(opts.Logger)
	t, err := newTables(opts.Store, opts.Codec, opts.MaxDecodeBytes)
	if err != nil {
		return nil, err
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = failures.New(settings.FailureTTL(), log)
	} else {
		tracker.SetTTL(settings.FailureTTL())
	}
	var hooks Hooks = NopHooks{}
	if opts.Hooks != nil {
		hooks = opts.Hooks
	}

	root, rootCancel := context.WithCancel(context.Background())
	e := &Engine{
		src:        opts.Source,
		newSource:  opts.NewSource,
		store:      opts.Store,
		search:     opts.Searcher,
		tracker:    tracker,
		log:        log,
		hooks:      hooks,
		pop:        opts.Populator,
		t:          t,
		clean:      opts.CleanTitle,
		rank:       opts.RankByTitle,
		grace:      coalesce(opts.ReconfigureGrace, defaultReconfigureGrace),
		popTimeout: coalesce(opts.PopulateTimeout, defaultPopulateTimeout),
		sleep:      opts.Sleep,
		now:        opts.Now,
		root:       root,
		rootCancel: rootCancel,
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.settings.Store(&settings)
	opts.Store.SetFingerprint(settings.CacheRelevantHash())
	return e, nil
}

func isZeroSettings(s config.Settings) bool {
	return reflect.DeepEqual(s, config.Settings{})
}
