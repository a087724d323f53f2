package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/unkn0wn-root/catalogcache/catalog"
)

type mapReader struct {
	cats     catalog.Categories
	series   map[int]catalog.SeriesList
	seasons  map[int]catalog.Seasons
	episodes map[[2]int]catalog.Episodes
	artwork  map[int]string
}

func (m *mapReader) Categories(context.Context) (catalog.Categories, bool, error) {
	return m.cats, m.cats != nil, nil
}

func (m *mapReader) Series(_ context.Context, id int) (catalog.SeriesList, bool, error) {
	v, ok := m.series[id]
	return v, ok, nil
}

func (m *mapReader) Seasons(_ context.Context, id int) (catalog.Seasons, bool, error) {
	v, ok := m.seasons[id]
	return v, ok, nil
}

func (m *mapReader) Episodes(_ context.Context, series, season int) (catalog.Episodes, bool, error) {
	v, ok := m.episodes[[2]int{series, season}]
	return v, ok, nil
}

func (m *mapReader) Artwork(_ context.Context, id int) (string, bool, error) {
	v, ok := m.artwork[id]
	return v, ok, nil
}

func sample() *mapReader {
	return &mapReader{
		cats: catalog.Categories{{ID: 1, Name: "Drama"}, {ID: 2, Name: "Kids"}},
		series: map[int]catalog.SeriesList{
			1: {{ID: 10, CategoryID: 1, Name: "A"}, {ID: 11, CategoryID: 1, Name: "B"}},
			2: {{ID: 10, CategoryID: 2, Name: "A"}},
		},
		seasons: map[int]catalog.Seasons{
			10: {{SeriesID: 10, ID: 1}},
			11: {{SeriesID: 11, ID: 1}, {SeriesID: 11, ID: 2}},
		},
		episodes: map[[2]int]catalog.Episodes{
			{10, 1}: {{ID: 100, SeriesID: 10, SeasonID: 1, Number: 1}},
			{11, 1}: {{ID: 110, SeriesID: 11, SeasonID: 1, Number: 1}},
			{11, 2}: {{ID: 120, SeriesID: 11, SeasonID: 2, Number: 1}},
		},
		artwork: map[int]string{10: "https://img/a.jpg"},
	}
}

func open(t *testing.T) *Populator {
	t.Helper()
	p, err := Open(filepath.Join(t.TempDir(), "nested", "catalog.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPopulateWritesCatalog(t *testing.T) {
	p := open(t)
	if err := p.Populate(context.Background(), sample()); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	counts, err := p.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	want := map[string]int{"categories": 1, "series": 2, "seasons": 2, "episodes": 3, "artwork": 1}
	for k, v := range want {
		if counts[k] != v {
			t.Fatalf("counts %v, want %v", counts, want)
		}
	}
	cats, ok, err := p.Categories()
	if err != nil || !ok || len(cats) != 2 {
		t.Fatalf("Categories=%v ok=%v err=%v", cats, ok, err)
	}
	if s, ok, _ := p.Series(11); !ok || s.Name != "B" {
		t.Fatalf("Series(11)=%+v ok=%v", s, ok)
	}
	if eps, ok, _ := p.Episodes(11, 2); !ok || len(eps) != 1 || eps[0].ID != 120 {
		t.Fatalf("Episodes=%v ok=%v", eps, ok)
	}
	if url, ok, _ := p.Artwork(10); !ok || url != "https://img/a.jpg" {
		t.Fatalf("Artwork=%q ok=%v", url, ok)
	}
}

func TestPopulateDropsStaleRecords(t *testing.T) {
	p := open(t)
	ctx := context.Background()
	r := sample()
	if err := p.Populate(ctx, r); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	r.series[1] = catalog.SeriesList{{ID: 10, CategoryID: 1, Name: "A"}}
	if err := p.Populate(ctx, r); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if _, ok, _ := p.Series(11); ok {
		t.Fatalf("series 11 should be gone")
	}
	if _, ok, _ := p.Episodes(11, 1); ok {
		t.Fatalf("episodes of series 11 should be gone")
	}

	// an invalidated cache has no categories at all
	if err := p.Populate(ctx, &mapReader{}); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	counts, _ := p.Count()
	for k, v := range counts {
		if k != "categories" && v != 0 {
			t.Fatalf("bucket %s still has %d records", k, v)
		}
	}
}

func TestPopulateHonorsCancellation(t *testing.T) {
	p := open(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Populate(ctx, sample()); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
