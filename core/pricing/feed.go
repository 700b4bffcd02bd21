package pricing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"solsavings/native/lending"
)

const maxFeedResponseBytes = 1 << 16

// StaticFeed serves a fixed collateral price. It backs development runs and
// tests; SetPrice lets a test simulate a market move between operations.
type StaticFeed struct {
	mu    sync.RWMutex
	price uint64
	scale uint64
	now   func() time.Time
}

// NewStaticFeed returns a feed quoting the given price at the given scale.
func NewStaticFeed(price, scale uint64) *StaticFeed {
	return &StaticFeed{price: price, scale: scale, now: time.Now}
}

// SetPrice replaces the quoted price.
func (f *StaticFeed) SetPrice(price uint64) {
	f.mu.Lock()
	f.price = price
	f.mu.Unlock()
}

func (f *StaticFeed) CollateralPrice() (lending.PriceQuote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.price == 0 {
		return lending.PriceQuote{}, lending.ErrPriceUnavailable
	}
	return lending.PriceQuote{
		Price:     f.price,
		Scale:     f.scale,
		Timestamp: f.now(),
		Source:    "static",
	}, nil
}

// feedResponse is the wire shape published by the upstream price service.
type feedResponse struct {
	Price     uint64 `json:"price"`
	Scale     uint64 `json:"scale"`
	Timestamp int64  `json:"timestamp"`
}

// HTTPFeed fetches the collateral spot price from a JSON endpoint. Quotes
// older than maxAge are rejected as unavailable so a wedged publisher cannot
// keep pricing liquidations.
type HTTPFeed struct {
	url    string
	client *http.Client
	maxAge time.Duration
	now    func() time.Time
}

// NewHTTPFeed constructs a feed polling the given URL. A zero maxAge disables
// the staleness guard.
func NewHTTPFeed(url string, maxAge time.Duration) *HTTPFeed {
	return &HTTPFeed{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (f *HTTPFeed) CollateralPrice() (lending.PriceQuote, error) {
	resp, err := f.client.Get(f.url)
	if err != nil {
		return lending.PriceQuote{}, fmt.Errorf("%w: %v", lending.ErrPriceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return lending.PriceQuote{}, fmt.Errorf("%w: feed returned status %d", lending.ErrPriceUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedResponseBytes))
	if err != nil {
		return lending.PriceQuote{}, fmt.Errorf("%w: %v", lending.ErrPriceUnavailable, err)
	}
	var parsed feedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return lending.PriceQuote{}, fmt.Errorf("%w: %v", lending.ErrPriceUnavailable, err)
	}
	if parsed.Price == 0 {
		return lending.PriceQuote{}, fmt.Errorf("%w: feed published zero price", lending.ErrPriceUnavailable)
	}
	observed := time.Unix(parsed.Timestamp, 0)
	if f.maxAge > 0 {
		age := f.now().Sub(observed)
		if age < 0 || age > f.maxAge {
			return lending.PriceQuote{}, fmt.Errorf("%w: quote is stale (age %s)", lending.ErrPriceUnavailable, age)
		}
	}
	return lending.PriceQuote{
		Price:     parsed.Price,
		Scale:     parsed.Scale,
		Timestamp: observed,
		Source:    f.url,
	}, nil
}
