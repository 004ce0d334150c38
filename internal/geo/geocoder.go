// Package geo resolves free-form location text into structured address
// components. Lookups degrade to an Unknown location rather than failing the
// caller: donor profile edits must never be blocked by a geocoding outage.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"bloodlink/internal/platform/config"
)

// Location is the structured result of a forward-geocode lookup.
type Location struct {
	City      string  `json:"city"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Label     string  `json:"label"`
	Latitude  float64 `json:"lat,omitempty"`
	Longitude float64 `json:"lng,omitempty"`
}

// Unknown is the degraded location used whenever a lookup cannot succeed.
func Unknown() Location {
	return Location{Label: "Unknown"}
}

// IsUnknown reports whether the location is the degraded placeholder.
func (l Location) IsUnknown() bool {
	return l.City == "" && l.Region == "" && l.Country == "" &&
		(l.Label == "" || l.Label == "Unknown")
}

// Resolver turns a free-form query into a Location.
type Resolver interface {
	Resolve(ctx context.Context, query string) Location
}

// Client calls a HERE-style forward geocoding endpoint, with an optional
// redis read-through cache in front of it.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	cache    goredis.Cmdable
	cacheTTL time.Duration
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCache attaches a redis cache for resolved locations.
func WithCache(cache goredis.Cmdable, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// NewClient builds a geocoding client from configuration.
func NewClient(cfg config.GeocoderConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: cfg.Timeout},
		cacheTTL: cfg.CacheTTL,
		logger:   slog.Default(),
	}
	if c.cacheTTL <= 0 {
		c.cacheTTL = 24 * time.Hour
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type hereResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Address struct {
			City    string `json:"city"`
			State   string `json:"state"`
			County  string `json:"county"`
			Country string `json:"countryName"`
			Label   string `json:"label"`
		} `json:"address"`
		Position struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"position"`
	} `json:"items"`
}

// Resolve looks up query against the geocoding service. Any failure (missing
// API key, transport error, non-200, empty result) yields Unknown.
func (c *Client) Resolve(ctx context.Context, query string) Location {
	query = strings.TrimSpace(query)
	if query == "" || c.apiKey == "" {
		return Unknown()
	}

	key := cacheKey(query)
	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, key).Result(); err == nil {
			var loc Location
			if err := json.Unmarshal([]byte(raw), &loc); err == nil {
				return loc
			}
		}
	}

	loc, err := c.lookup(ctx, query)
	if err != nil {
		c.logger.WarnContext(ctx, "geocode lookup failed",
			"query", query,
			"error", err,
		)
		return Unknown()
	}

	if c.cache != nil {
		if raw, err := json.Marshal(loc); err == nil {
			if err := c.cache.Set(ctx, key, raw, c.cacheTTL).Err(); err != nil {
				c.logger.WarnContext(ctx, "geocode cache write failed", "error", err)
			}
		}
	}
	return loc
}

func (c *Client) lookup(ctx context.Context, query string) (Location, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return Location{}, fmt.Errorf("parse geocoder URL: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("apiKey", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Location{}, fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geocode request: unexpected status %d", resp.StatusCode)
	}

	var body hereResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(body.Items) == 0 {
		return Location{}, fmt.Errorf("geocode request: no results for %q", query)
	}

	item := body.Items[0]
	region := item.Address.State
	if region == "" {
		region = item.Address.County
	}
	loc := Location{
		City:      item.Address.City,
		Region:    region,
		Country:   item.Address.Country,
		Label:     item.Address.Label,
		Latitude:  item.Position.Lat,
		Longitude: item.Position.Lng,
	}
	if loc.Label == "" {
		loc.Label = item.Title
	}
	return loc, nil
}

func cacheKey(query string) string {
	return "geo:" + strings.ToLower(query)
}

// Static is a Resolver backed by a fixed answer table, for tests and
// offline development.
type Static map[string]Location

// Resolve returns the mapped location, or Unknown when absent.
func (s Static) Resolve(_ context.Context, query string) Location {
	if loc, ok := s[strings.TrimSpace(query)]; ok {
		return loc
	}
	return Unknown()
}
