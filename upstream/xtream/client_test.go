package xtream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/unkn0wn-root/catalogcache/catalog"
)

func newTestServer(t *testing.T, routes map[string]string, status int) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/player_api.php" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("username") != "u" || r.URL.Query().Get("password") != "p" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		body, ok := routes[r.URL.Query().Get("action")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", "u", "p")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, c
}

func TestRequestURL(t *testing.T) {
	c, err := New("http://panel.example:8080/", "user", "pa ss")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := c.RequestURL(catalog.ActionSeries, 12)
	if !strings.HasPrefix(got, "http://panel.example:8080/player_api.php?") {
		t.Fatalf("url %q", got)
	}
	for _, want := range []string{"action=get_series", "category_id=12", "username=user", "password=h-"} {
		if !strings.Contains(got, want) {
			t.Fatalf("url %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "pa+ss") {
		t.Fatalf("password leaked into target %q", got)
	}
	other, _ := New("http://panel.example:8080/", "user", "new")
	if other.RequestURL(catalog.ActionSeries, 12) == got {
		t.Fatalf("targets must differ per credential")
	}
	if a, b := c.RequestURL(catalog.ActionSeriesInfo, 1), c.RequestURL(catalog.ActionSeriesInfo, 2); a == b {
		t.Fatalf("targets for different series must differ")
	}
	if _, err := New(" ", "u", "p"); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}

func TestCategoriesMixedIDTypes(t *testing.T) {
	_, c := newTestServer(t, map[string]string{
		catalog.ActionCategories: `[{"category_id":"3","category_name":"Drama"},{"category_id":7,"category_name":"Kids"}]`,
	}, 0)
	cats, err := c.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 2 || cats[0].ID != 3 || cats[1].ID != 7 || cats[1].Name != "Kids" {
		t.Fatalf("cats %+v", cats)
	}
}

func TestSeriesByCategory(t *testing.T) {
	_, c := newTestServer(t, map[string]string{
		catalog.ActionSeries: `[{"series_id":"11","name":"Show","cover":"http://img/1.jpg","rating":"7.5","category_id":""},{"series_id":12,"name":"Other","rating":"n/a"}]`,
	}, 0)
	list, err := c.SeriesByCategory(context.Background(), 4)
	if err != nil {
		t.Fatalf("SeriesByCategory: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len %d", len(list))
	}
	if list[0].ID != 11 || list[0].CategoryID != 4 || list[0].Rating != 7.5 {
		t.Fatalf("first %+v", list[0])
	}
	if list[1].Rating != 0 {
		t.Fatalf("bad rating should decode as 0, got %v", list[1].Rating)
	}
}

func TestSeriesInfoShapes(t *testing.T) {
	body := `{
		"seasons":[{"season_number":2,"name":"S2","episode_count":"1"},{"season_number":1,"name":"S1","episode_count":2}],
		"info":{"name":"Show"},
		"episodes":{
			"1":[{"id":"102","episode_num":2,"title":"B","info":[]},{"id":"101","episode_num":"1","title":"A","info":{"duration_secs":"1500"}}],
			"2":[{"id":"201","episode_num":1,"title":"C"}]
		}
	}`
	_, c := newTestServer(t, map[string]string{catalog.ActionSeriesInfo: body}, 0)
	info, err := c.SeriesInfo(context.Background(), 9)
	if err != nil {
		t.Fatalf("SeriesInfo: %v", err)
	}
	if len(info.Seasons) != 2 || info.Seasons[0].ID != 1 || info.Seasons[0].SeriesID != 9 {
		t.Fatalf("seasons %+v", info.Seasons)
	}
	s1 := info.Episodes[1]
	if len(s1) != 2 || s1[0].Number != 1 || s1[0].DurationSecs != 1500 || s1[0].SeasonID != 1 {
		t.Fatalf("season 1 episodes %+v", s1)
	}
	if got := info.SeasonIDs(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("season ids %v", got)
	}
}

func TestSeriesInfoEpisodesAsArray(t *testing.T) {
	body := `{"seasons":[],"episodes":[{"id":1,"season":3,"episode_num":1,"title":"x"}]}`
	_, c := newTestServer(t, map[string]string{catalog.ActionSeriesInfo: body}, 0)
	info, err := c.SeriesInfo(context.Background(), 1)
	if err != nil {
		t.Fatalf("SeriesInfo: %v", err)
	}
	if len(info.Episodes[3]) != 1 {
		t.Fatalf("episodes %+v", info.Episodes)
	}
}

func TestMalformedBodiesBecomeEmpty(t *testing.T) {
	_, c := newTestServer(t, map[string]string{
		catalog.ActionSeriesInfo: `[]`,
		catalog.ActionCategories: `{"error":"nope"}`,
		catalog.ActionSeries:     `not json`,
	}, 0)
	ctx := context.Background()

	info, err := c.SeriesInfo(ctx, 5)
	if err != nil {
		t.Fatalf("SeriesInfo: %v", err)
	}
	if info.Seasons == nil || info.Episodes == nil || len(info.Seasons) != 0 {
		t.Fatalf("expected empty series info, got %+v", info)
	}
	cats, err := c.Categories(ctx)
	if err != nil || cats == nil || len(cats) != 0 {
		t.Fatalf("categories=%v err=%v", cats, err)
	}
	list, err := c.SeriesByCategory(ctx, 1)
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("series=%v err=%v", list, err)
	}
}

func TestStatusError(t *testing.T) {
	_, c := newTestServer(t, nil, http.StatusServiceUnavailable)
	_, err := c.Categories(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode() != http.StatusServiceUnavailable {
		t.Fatalf("code %d", se.StatusCode())
	}
	if strings.Contains(se.Error(), "password=p") {
		t.Fatalf("password leaked into error: %s", se.Error())
	}
}

func TestTransportErrorHidesPassword(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(base+"/", "u", "S3CRET-PW")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Categories(context.Background())
	if err == nil {
		t.Fatal("expected a connection error")
	}
	if strings.Contains(err.Error(), "S3CRET-PW") {
		t.Fatalf("password leaked into error: %s", err)
	}
	if !strings.Contains(err.Error(), "password=xxx") {
		t.Fatalf("expected redacted url in error: %s", err)
	}
}
