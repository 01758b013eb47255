package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avicke/foliotrack/internal/logger"
	"github.com/avicke/foliotrack/internal/storage"
)

func TestCoinGeckoGetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "bitcoin" {
			t.Errorf("ids = %q, want bitcoin", got)
		}
		w.Write([]byte(`{"bitcoin":{"usd":64123.5}}`))
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(time.Second, time.Minute)
	p.baseURL = srv.URL

	price, err := p.GetPrice(context.Background(), "Bitcoin")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("64123.5")) {
		t.Errorf("price = %s, want 64123.5", price)
	}
}

func TestCoinGeckoUnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(time.Second, time.Minute)
	p.baseURL = srv.URL

	if _, err := p.GetPrice(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown symbol")
	}
}

func TestCoinGeckoCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"ethereum":{"usd":3000}}`))
	}))

	p := NewCoinGeckoProvider(time.Second, time.Minute)
	p.baseURL = srv.URL

	if _, err := p.GetPrice(context.Background(), "ethereum"); err != nil {
		t.Fatalf("first GetPrice: %v", err)
	}
	srv.Close() // second lookup must be served from cache

	price, err := p.GetPrice(context.Background(), "ethereum")
	if err != nil {
		t.Fatalf("cached GetPrice: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("cached price = %s, want 3000", price)
	}
	if calls != 1 {
		t.Errorf("upstream called %d times, want 1", calls)
	}
}

func TestYahooGetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":187.42,"regularMarketTime":1700000000}}],"error":null}}`))
	}))
	defer srv.Close()

	p := NewYahooProvider(time.Second, time.Minute)
	p.baseURL = srv.URL

	price, err := p.GetPrice(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("187.42")) {
		t.Errorf("price = %s, want 187.42", price)
	}
}

func TestYahooFallbackToLastClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":0},"timestamp":[1,2,3],"indicators":{"quote":[{"close":[10.5,11.5,0]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	p := NewYahooProvider(time.Second, time.Minute)
	p.baseURL = srv.URL

	price, err := p.GetPrice(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("11.5")) {
		t.Errorf("price = %s, want last non-zero close 11.5", price)
	}
}

func TestAlphaVantageRateLimitNote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note":"Thank you for using Alpha Vantage!"}`))
	}))
	defer srv.Close()

	p := NewAlphaVantageProvider("demo", time.Second, time.Minute)
	p.baseURL = srv.URL

	if _, err := p.GetPrice(context.Background(), "AAPL"); !errors.Is(err, errRateLimited) {
		t.Fatalf("error = %v, want errRateLimited", err)
	}
}

func TestAlphaVantageGetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote":{"01. symbol":"AAPL","05. price":"187.4200"}}`))
	}))
	defer srv.Close()

	p := NewAlphaVantageProvider("demo", time.Second, time.Minute)
	p.baseURL = srv.URL

	price, err := p.GetPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("187.42")) {
		t.Errorf("price = %s, want 187.42", price)
	}
}

type failingProvider struct{}

func (failingProvider) GetPrice(context.Context, string) (decimal.Decimal, error) {
	return decimal.Decimal{}, errors.New("boom")
}

type fixedProvider struct{ price decimal.Decimal }

func (p fixedProvider) GetPrice(context.Context, string) (decimal.Decimal, error) {
	return p.price, nil
}

func TestRouterCollapsesFailuresToUnavailable(t *testing.T) {
	r := &Router{
		stocks:  failingProvider{},
		crypto:  fixedProvider{price: decimal.NewFromInt(100)},
		timeout: time.Second,
		logger:  logger.New("error"),
	}

	if _, err := r.LookupPrice(context.Background(), "AAPL", storage.AssetStock); !errors.Is(err, ErrUnavailable) {
		t.Errorf("provider failure: error = %v, want ErrUnavailable", err)
	}
	if _, err := r.LookupPrice(context.Background(), "X", storage.AssetClass("bond")); !errors.Is(err, ErrUnavailable) {
		t.Errorf("unknown class: error = %v, want ErrUnavailable", err)
	}

	price, err := r.LookupPrice(context.Background(), "bitcoin", storage.AssetCrypto)
	if err != nil {
		t.Fatalf("crypto lookup: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("price = %s, want 100", price)
	}
}

func TestRouterRejectsNonPositivePrice(t *testing.T) {
	r := &Router{
		stocks:  fixedProvider{price: decimal.Zero},
		crypto:  fixedProvider{price: decimal.Zero},
		timeout: time.Second,
		logger:  logger.New("error"),
	}
	if _, err := r.LookupPrice(context.Background(), "AAPL", storage.AssetStock); !errors.Is(err, ErrUnavailable) {
		t.Errorf("zero price: error = %v, want ErrUnavailable", err)
	}
}
