package catalog

import "testing"

func TestEmptyValuesAreNonNil(t *testing.T) {
	if EmptyOf[Categories]() == nil || EmptyOf[SeriesList]() == nil ||
		EmptyOf[Seasons]() == nil || EmptyOf[Episodes]() == nil {
		t.Fatalf("empty slices must be non-nil so they encode as []")
	}
	info := EmptyOf[SeriesInfo]()
	if info.Seasons == nil || info.Episodes == nil {
		t.Fatalf("empty SeriesInfo must have non-nil fields: %+v", info)
	}
}

func TestSeasonIDsMergesSeasonsAndEpisodes(t *testing.T) {
	info := SeriesInfo{
		Seasons:  Seasons{{ID: 2}, {ID: 1}},
		Episodes: map[int]Episodes{1: {{ID: 10}}, 3: {{ID: 30}}},
	}
	got := info.SeasonIDs()
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestKeys(t *testing.T) {
	if KeyEpisodes(12, 3) != "episodes:12:3" || KeySeries(5) != "series:5" ||
		KeySeasons(7) != "seasons:7" || KeyArtwork(9) != "artwork:9" {
		t.Fatalf("unexpected key layout")
	}
}
