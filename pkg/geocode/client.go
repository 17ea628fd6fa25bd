// Package geocode resolves street addresses to coordinates via the Census
// geocoding API, with rate limiting and an in-memory cache.
package geocode

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AddressInput is one address to geocode.
type AddressInput struct {
	ID      string
	Street  string
	City    string
	State   string
	ZipCode string
}

// Result is the outcome for one address. Matched=false is a normal miss, not
// an error.
type Result struct {
	Latitude  float64
	Longitude float64
	Quality   string // "rooftop" or "range"
	Matched   bool
}

// Client geocodes addresses.
type Client interface {
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
	GeocodeBatch(ctx context.Context, addrs []AddressInput) ([]Result, error)
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL overrides the API root (for testing).
func WithBaseURL(u string) Option {
	return func(g *geocoder) { g.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) { g.http = hc }
}

type geocoder struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[string]Result
}

// New builds a Census geocoder. rps bounds the request rate against the
// public API.
func New(rps float64, opts ...Option) Client {
	if rps <= 0 {
		rps = 2
	}
	g := &geocoder{
		baseURL: "https://geocoding.geo.census.gov/geocoder/locations",
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		cache:   make(map[string]Result),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func cacheKey(addr AddressInput) string {
	return strings.ToUpper(strings.Join([]string{addr.Street, addr.City, addr.State, addr.ZipCode}, "|"))
}

func (g *geocoder) cached(addr AddressInput) (Result, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.cache[cacheKey(addr)]
	return r, ok
}

func (g *geocoder) remember(addr AddressInput, r Result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache[cacheKey(addr)] = r
}
