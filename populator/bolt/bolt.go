// Package bolt materializes the cached catalog into a BoltDB file, the
// host-side persistent copy that survives restarts of the cache.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/unkn0wn-root/catalogcache/catalog"
	"github.com/unkn0wn-root/catalogcache/logging"
)

// Bucket names
var (
	bucketCategories = []byte("categories")
	bucketSeries     = []byte("series")
	bucketSeasons    = []byte("seasons")
	bucketEpisodes   = []byte("episodes")
	bucketArtwork    = []byte("artwork")

	allBuckets = [][]byte{bucketCategories, bucketSeries, bucketSeasons, bucketEpisodes, bucketArtwork}
)

// Populator rewrites the database from a catalog.Reader on every Populate.
// Records that are no longer in the cache disappear with the rewrite.
type Populator struct {
	db  *bolt.DB
	log logging.Logger
}

func Open(path string, log logging.Logger) (*Populator, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Populator{db: db, log: logging.OrNop(log)}, nil
}

func (p *Populator) Close() error { return p.db.Close() }

type snapshot struct {
	categories catalog.Categories
	series     map[int]catalog.Series
	seasons    map[int]catalog.Seasons
	episodes   map[string]catalog.Episodes
	artwork    map[int]string
}

// Populate reads the whole catalog first and then swaps it in with one
// transaction, so readers of the file never see a half-written catalog.
// A cache without categories (e.g. right after invalidation) empties the
// database.
func (p *Populator) Populate(ctx context.Context, r catalog.Reader) error {
	snap, err := read(ctx, r)
	if err != nil {
		return err
	}
	err = p.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		if err := putJSON(tx.Bucket(bucketCategories), "all", snap.categories); err != nil {
			return err
		}
		for id, s := range snap.series {
			if err := putJSON(tx.Bucket(bucketSeries), strconv.Itoa(id), s); err != nil {
				return err
			}
		}
		for id, s := range snap.seasons {
			if err := putJSON(tx.Bucket(bucketSeasons), strconv.Itoa(id), s); err != nil {
				return err
			}
		}
		for k, eps := range snap.episodes {
			if err := putJSON(tx.Bucket(bucketEpisodes), k, eps); err != nil {
				return err
			}
		}
		for id, url := range snap.artwork {
			if err := tx.Bucket(bucketArtwork).Put([]byte(strconv.Itoa(id)), []byte(url)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	p.log.Info("catalog materialized", logging.Fields{
		"categories": len(snap.categories),
		"series":     len(snap.series),
		"artwork":    len(snap.artwork),
	})
	return nil
}

func read(ctx context.Context, r catalog.Reader) (*snapshot, error) {
	snap := &snapshot{
		series:   map[int]catalog.Series{},
		seasons:  map[int]catalog.Seasons{},
		episodes: map[string]catalog.Episodes{},
		artwork:  map[int]string{},
	}
	cats, ok, err := r.Categories(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		snap.categories = catalog.Categories{}
		return snap, nil
	}
	snap.categories = cats
	for _, c := range cats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		list, ok, err := r.Series(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, s := range list {
			if _, seen := snap.series[s.ID]; seen {
				continue
			}
			snap.series[s.ID] = s
			if err := readSeries(ctx, r, snap, s.ID); err != nil {
				return nil, err
			}
		}
	}
	return snap, nil
}

func readSeries(ctx context.Context, r catalog.Reader, snap *snapshot, id int) error {
	seasons, ok, err := r.Seasons(ctx, id)
	if err != nil {
		return err
	}
	if ok {
		snap.seasons[id] = seasons
		for _, se := range seasons {
			eps, ok, err := r.Episodes(ctx, id, se.ID)
			if err != nil {
				return err
			}
			if ok {
				snap.episodes[episodeKey(id, se.ID)] = eps
			}
		}
	}
	url, ok, err := r.Artwork(ctx, id)
	if err != nil {
		return err
	}
	if ok && url != "" {
		snap.artwork[id] = url
	}
	return nil
}

func episodeKey(seriesID, seasonID int) string {
	return strconv.Itoa(seriesID) + ":" + strconv.Itoa(seasonID)
}

func putJSON(b *bolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

// === Reads ===

func (p *Populator) getJSON(bucket []byte, key string, dest any) (bool, error) {
	var data []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil || data == nil {
		return false, err
	}
	return true, json.Unmarshal(data, dest)
}

func (p *Populator) Categories() (catalog.Categories, bool, error) {
	var v catalog.Categories
	ok, err := p.getJSON(bucketCategories, "all", &v)
	return v, ok, err
}

func (p *Populator) Series(id int) (catalog.Series, bool, error) {
	var v catalog.Series
	ok, err := p.getJSON(bucketSeries, strconv.Itoa(id), &v)
	return v, ok, err
}

func (p *Populator) Episodes(seriesID, seasonID int) (catalog.Episodes, bool, error) {
	var v catalog.Episodes
	ok, err := p.getJSON(bucketEpisodes, episodeKey(seriesID, seasonID), &v)
	return v, ok, err
}

func (p *Populator) Artwork(seriesID int) (string, bool, error) {
	var url string
	err := p.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketArtwork).Get([]byte(strconv.Itoa(seriesID))); v != nil {
			url = string(v)
		}
		return nil
	})
	return url, url != "", err
}

// Count returns the number of records per bucket.
func (p *Populator) Count() (map[string]int, error) {
	out := make(map[string]int, len(allBuckets))
	err := p.db.View(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if b := tx.Bucket(name); b != nil {
				out[string(name)] = b.Stats().KeyN
			}
		}
		return nil
	})
	return out, err
}
