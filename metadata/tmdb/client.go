// Package tmdb implements metadata.Searcher against The Movie Database v3 API.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/catalogcache/metadata"
)

const (
	DefaultBaseURL   = "https://api.themoviedb.org/3"
	DefaultImageBase = "https://image.tmdb.org/t/p/w500"
)

type show struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PosterPath string `json:"poster_path"`
}

type searchResponse struct {
	Results []show `json:"results"`
}

type findResponse struct {
	TVResults []show `json:"tv_results"`
}

// Client provides TV lookups for artwork resolution.
type Client struct {
	apiKey     string
	baseURL    string
	imageBase  string
	language   string
	httpClient *http.Client
}

var _ metadata.Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL points the client at another API root (tests, proxies).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimSpace(base); base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithImageBase sets the prefix joined with poster paths.
func WithImageBase(base string) Option {
	return func(c *Client) {
		if base = strings.TrimSpace(base); base != "" {
			c.imageBase = strings.TrimRight(base, "/")
		}
	}
}

// WithLanguage sets the language query parameter.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = strings.TrimSpace(lang) }
}

// New creates a TMDB client.
func New(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		imageBase:  DefaultImageBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchByName runs a TV search for term.
func (c *Client) SearchByName(ctx context.Context, term string) ([]metadata.Result, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, errors.New("query must not be empty")
	}
	var payload searchResponse
	if err := c.getJSON(ctx, "/search/tv", url.Values{"query": {term}}, &payload); err != nil {
		return nil, err
	}
	return c.results(payload.Results), nil
}

// SearchByExternalID resolves an override id. Accepted forms are a TMDB
// numeric id ("1399"), an IMDb id ("tt0944947") and "tvdb:<id>".
func (c *Client) SearchByExternalID(ctx context.Context, id string) ([]metadata.Result, error) {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return nil, errors.New("id must not be empty")
	case strings.HasPrefix(strings.ToLower(id), "tt"):
		return c.find(ctx, id, "imdb_id")
	case strings.HasPrefix(strings.ToLower(id), "tvdb:"):
		return c.find(ctx, strings.TrimSpace(id[len("tvdb:"):]), "tvdb_id")
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(strings.ToLower(id), "tmdb:"), 10, 64)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("unsupported tmdb id %q", id)
	}
	var payload show
	if err := c.getJSON(ctx, fmt.Sprintf("/tv/%d", n), nil, &payload); err != nil {
		return nil, err
	}
	return c.results([]show{payload}), nil
}

func (c *Client) find(ctx context.Context, id, source string) ([]metadata.Result, error) {
	var payload findResponse
	path := "/find/" + url.PathEscape(id)
	if err := c.getJSON(ctx, path, url.Values{"external_source": {source}}, &payload); err != nil {
		return nil, err
	}
	return c.results(payload.TVResults), nil
}

func (c *Client) results(in []show) []metadata.Result {
	out := make([]metadata.Result, 0, len(in))
	for _, s := range in {
		r := metadata.Result{ID: strconv.FormatInt(s.ID, 10), Name: s.Name}
		if s.PosterPath != "" {
			r.ImageURL = c.imageBase + "/" + strings.TrimLeft(s.PosterPath, "/")
		}
		out = append(out, r)
	}
	return out
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = redactKey(ue.URL)
		}
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb %s returned %d (latency=%v)", path, resp.StatusCode, latency)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tmdb response: %w", err)
	}
	return nil
}

// redactKey masks the api_key a transport error would otherwise echo.
func redactKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "xxx")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
