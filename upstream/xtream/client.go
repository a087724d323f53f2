// Package xtream is a catalog.Source for Xtream Codes style panels
// (player_api.php). Panels are inconsistent about JSON shapes, so payloads
// that cannot be decoded become the entity's Empty value instead of an error.
package xtream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/catalogcache/catalog"
	"github.com/unkn0wn-root/catalogcache/internal/util"
	"github.com/unkn0wn-root/catalogcache/logging"
)

const defaultMaxBody = 64 << 20

// StatusError is a non-2xx response. It exposes StatusCode for retry
// classification.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("xtream: %s returned %d", e.URL, e.Code)
}

func (e *StatusError) StatusCode() int { return e.Code }

// MalformedResponseError describes a body that did not decode. It is logged,
// never returned by the fetch methods.
type MalformedResponseError struct {
	Action string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return "xtream: malformed " + e.Action + " response: " + e.Err.Error()
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

type Client struct {
	baseURL    string
	username   string
	password   string
	userAgent  string
	maxBody    int64
	httpClient *http.Client
	log        logging.Logger
}

var _ catalog.Source = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = logging.OrNop(l) }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithMaxBody caps how many bytes of a response are read.
func WithMaxBody(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// New creates a client for the panel at baseURL.
func New(baseURL, username, password string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("xtream base url required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse xtream base url: %w", err)
	}
	c := &Client{
		baseURL:    baseURL,
		username:   username,
		password:   password,
		userAgent:  "catalogcache/1",
		maxBody:    defaultMaxBody,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RequestURL identifies a request for failure tracking and logs. It is the
// request URL with the password replaced by a short hash, so targets stay
// distinct per credential without carrying the secret.
func (c *Client) RequestURL(action string, id int) string {
	return c.buildURL(action, id, "h-"+util.ShortHash(c.username, c.password))
}

// buildURL sends id as category_id or series_id depending on the action;
// it is ignored for categories.
func (c *Client) buildURL(action string, id int, password string) string {
	q := url.Values{}
	q.Set("username", c.username)
	q.Set("password", password)
	q.Set("action", action)
	switch action {
	case catalog.ActionSeries:
		q.Set("category_id", strconv.Itoa(id))
	case catalog.ActionSeriesInfo:
		q.Set("series_id", strconv.Itoa(id))
	}
	return c.baseURL + "/player_api.php?" + q.Encode()
}

func (c *Client) Categories(ctx context.Context) (catalog.Categories, error) {
	return fetch(ctx, c, catalog.ActionCategories, 0, mapCategories)
}

func (c *Client) SeriesByCategory(ctx context.Context, categoryID int) (catalog.SeriesList, error) {
	return fetch(ctx, c, catalog.ActionSeries, categoryID, mapSeriesList(categoryID))
}

func (c *Client) SeriesInfo(ctx context.Context, seriesID int) (catalog.SeriesInfo, error) {
	return fetch(ctx, c, catalog.ActionSeriesInfo, seriesID, mapSeriesInfo(seriesID))
}

func fetch[D any, T catalog.Entity[T]](ctx context.Context, c *Client, action string, id int, conv func(D) T) (T, error) {
	body, err := c.get(ctx, c.buildURL(action, id, c.password))
	if err != nil {
		var zero T
		return zero, err
	}
	var dto D
	if err := json.Unmarshal(body, &dto); err != nil {
		merr := &MalformedResponseError{Action: action, Err: err}
		c.log.Warn("xtream response did not decode; using empty value", logging.Fields{
			"action": action,
			"id":     id,
			"err":    merr,
		})
		return catalog.EmptyOf[T](), nil
	}
	return conv(dto), nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		// transport errors quote the request URL, password included
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = redact(ue.URL)
		}
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{Code: resp.StatusCode, URL: redact(rawURL)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body (latency=%v): %w", latency, err)
	}
	c.log.Debug("xtream request", logging.Fields{"url": redact(rawURL), "latency": latency, "bytes": len(body)})
	return body, nil
}

// redact hides credentials in URLs that end up in logs and errors.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("password") {
		q.Set("password", "xxx")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
