package carddb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ironsheep/card-scanner/internal/logger"
)

const (
	// DefaultBaseURL is the public Scryfall API.
	DefaultBaseURL = "https://api.scryfall.com"

	// DefaultUserAgent identifies the scanner to Scryfall.
	DefaultUserAgent = "card-scanner/1.0"

	defaultTimeout   = 10 * time.Second
	defaultRate      = rate.Limit(10)
	defaultBurst     = 1
	maxSearchPages   = 5
	maxResponseBytes = 8 << 20
)

// Stats reports cache effectiveness since the last ClearCache.
type Stats struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
}

// Client looks cards up in the Scryfall database.
//
// Single-card lookups are cached in memory and, when a Cache is configured,
// persistently. Requests are rate limited to Scryfall's published budget.
// A Client is safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	cache     Cache

	mu     sync.Mutex
	memory map[string]*CardInfo
	stats  Stats
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another server, e.g. a test double.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache adds a persistent cache behind the in-memory one.
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithRateLimit overrides the request rate.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a Scryfall client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		http:      &http.Client{Timeout: defaultTimeout},
		limiter:   rate.NewLimiter(defaultRate, defaultBurst),
		memory:    make(map[string]*CardInfo),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ByCollectorNumber looks a card up by set code and collector number, the
// most reliable key printed on a card. The set code is matched
// case-insensitively.
func (c *Client) ByCollectorNumber(ctx context.Context, setCode, number string) (*CardInfo, error) {
	if setCode == "" || number == "" {
		return nil, fmt.Errorf("%w: set code and collector number are required", ErrNotFound)
	}
	set := strings.ToLower(setCode)
	key := "collector_" + set + "_" + number

	path := "/cards/" + url.PathEscape(set) + "/" + url.PathEscape(number)
	return c.lookup(ctx, key, path, nil)
}

// ByFuzzyName looks a card up by an approximate name.
func (c *Client) ByFuzzyName(ctx context.Context, name string) (*CardInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrNotFound)
	}
	key := "name_" + strings.ToLower(name)
	return c.lookup(ctx, key, "/cards/named", url.Values{"fuzzy": {name}})
}

// Search runs a Scryfall full-text query. Results are not cached. A query
// with no matches returns an empty slice.
func (c *Client) Search(ctx context.Context, query string) ([]*CardInfo, error) {
	cards := make([]*CardInfo, 0)
	if strings.TrimSpace(query) == "" {
		return cards, nil
	}

	next := c.baseURL + "/cards/search?" + url.Values{"q": {query}}.Encode()
	for page := 0; page < maxSearchPages && next != ""; page++ {
		body, err := c.get(ctx, next)
		if errors.Is(err, ErrNotFound) {
			return cards, nil
		} else if err != nil {
			return nil, err
		}

		var list scryfallList
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("failed to decode search results: %w", err)
		}
		if list.Object != "list" {
			return nil, fmt.Errorf("unexpected search response object %q", list.Object)
		}

		for _, raw := range list.Data {
			card, err := ParseCard(raw)
			if err != nil {
				logger.Debug(logger.Fields{"error": err}, "Skipping invalid search result")
				continue
			}
			cards = append(cards, card)
		}

		next = ""
		if list.HasMore {
			next = list.NextPage
		}
	}
	return cards, nil
}

// Stats returns the hit and miss counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// ClearCache empties the in-memory and persistent caches and resets Stats.
func (c *Client) ClearCache(ctx context.Context) error {
	c.mu.Lock()
	c.memory = make(map[string]*CardInfo)
	c.stats = Stats{}
	c.mu.Unlock()

	if c.cache != nil {
		if err := c.cache.Clear(ctx); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
	}
	logger.Info(nil, "Card cache cleared")
	return nil
}

// Close releases the persistent cache.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

func (c *Client) lookup(ctx context.Context, key, path string, query url.Values) (*CardInfo, error) {
	if card := c.cached(ctx, key); card != nil {
		logger.Debug(logger.Fields{"key": key}, "Card cache hit")
		return card, nil
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	logger.Debug(logger.Fields{"url": target}, "Card lookup")

	body, err := c.get(ctx, target)
	if err != nil {
		return nil, err
	}
	card, err := ParseCard(body)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, card)
	logger.Info(logger.Fields{
		"name":   card.Name,
		"set":    card.SetCode,
		"number": card.CollectorNumber,
	}, "Found card")
	return card, nil
}

// cached checks memory, then the persistent cache, and updates the counters.
func (c *Client) cached(ctx context.Context, key string) *CardInfo {
	c.mu.Lock()
	card, ok := c.memory[key]
	if ok {
		c.stats.Hits++
		c.mu.Unlock()
		return card
	}
	c.mu.Unlock()

	if c.cache != nil {
		card, err := c.cache.Get(ctx, key)
		if err == nil && card.Valid() {
			c.mu.Lock()
			c.memory[key] = card
			c.stats.Hits++
			c.mu.Unlock()
			return card
		}
		if err != nil && !errors.Is(err, ErrCacheMiss) {
			logger.Warn(logger.Fields{"key": key, "error": err}, "Failed to read card cache")
		}
	}

	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
	return nil
}

func (c *Client) store(ctx context.Context, key string, card *CardInfo) {
	c.mu.Lock()
	c.memory[key] = card
	c.mu.Unlock()

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, card); err != nil {
			logger.Warn(logger.Fields{"key": key, "error": err}, "Failed to write card cache")
		}
	}
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, errorDetails(body))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("scryfall returned HTTP %d: %s", resp.StatusCode, errorDetails(body))
	}
	return body, nil
}

func errorDetails(body []byte) string {
	var e struct {
		Details string `json:"details"`
	}
	if json.Unmarshal(body, &e) == nil && e.Details != "" {
		return e.Details
	}
	return "no details"
}
