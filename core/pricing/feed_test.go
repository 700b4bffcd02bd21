package pricing

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"solsavings/native/lending"
)

func TestStaticFeedServesConfiguredPrice(t *testing.T) {
	feed := NewStaticFeed(15_000, lending.PriceScale)

	quote, err := feed.CollateralPrice()
	require.NoError(t, err)
	require.Equal(t, uint64(15_000), quote.Price)
	require.Equal(t, uint64(lending.PriceScale), quote.Scale)
	require.Equal(t, "static", quote.Source)

	feed.SetPrice(7_000)
	quote, err = feed.CollateralPrice()
	require.NoError(t, err)
	require.Equal(t, uint64(7_000), quote.Price)
}

func TestStaticFeedRejectsZeroPrice(t *testing.T) {
	feed := NewStaticFeed(0, lending.PriceScale)
	_, err := feed.CollateralPrice()
	require.ErrorIs(t, err, lending.ErrPriceUnavailable)
}

func TestHTTPFeedParsesQuote(t *testing.T) {
	published := time.Now().Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"price": 15000, "scale": 10000, "timestamp": %d}`, published)
	}))
	defer srv.Close()

	feed := NewHTTPFeed(srv.URL, time.Minute)
	quote, err := feed.CollateralPrice()
	require.NoError(t, err)
	require.Equal(t, uint64(15_000), quote.Price)
	require.Equal(t, uint64(10_000), quote.Scale)
	require.Equal(t, published, quote.Timestamp.Unix())
	require.Equal(t, srv.URL, quote.Source)
}

func TestHTTPFeedRejectsStaleQuote(t *testing.T) {
	stale := time.Now().Add(-time.Hour).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"price": 15000, "scale": 10000, "timestamp": %d}`, stale)
	}))
	defer srv.Close()

	feed := NewHTTPFeed(srv.URL, time.Minute)
	_, err := feed.CollateralPrice()
	require.ErrorIs(t, err, lending.ErrPriceUnavailable)
}

func TestHTTPFeedRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	feed := NewHTTPFeed(srv.URL, time.Minute)
	_, err := feed.CollateralPrice()
	require.ErrorIs(t, err, lending.ErrPriceUnavailable)
}

func TestHTTPFeedRejectsZeroPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"price": 0, "scale": 10000, "timestamp": %d}`, time.Now().Unix())
	}))
	defer srv.Close()

	feed := NewHTTPFeed(srv.URL, time.Minute)
	_, err := feed.CollateralPrice()
	require.ErrorIs(t, err, lending.ErrPriceUnavailable)
}

func TestHTTPFeedRejectsGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "not json")
	}))
	defer srv.Close()

	feed := NewHTTPFeed(srv.URL, time.Minute)
	_, err := feed.CollateralPrice()
	require.ErrorIs(t, err, lending.ErrPriceUnavailable)
}

func TestHTTPFeedUnreachable(t *testing.T) {
	feed := NewHTTPFeed("http://127.0.0.1:1", time.Minute)
	_, err := feed.CollateralPrice()
	require.ErrorIs(t, err, lending.ErrPriceUnavailable)
}
