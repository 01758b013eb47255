package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultAlphaVantageURL = "https://www.alphavantage.co"

var errRateLimited = errors.New("alpha vantage rate limit or information note")

// AlphaVantageProvider quotes equities via GLOBAL_QUOTE. Requires an API
// key; the free tier is heavily rate-limited, hence the shared TTL cache.
type AlphaVantageProvider struct {
	baseURL string
	apiKey  string
	cli     *http.Client
	cache   *quoteCache
}

func NewAlphaVantageProvider(apiKey string, timeout, ttl time.Duration) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		baseURL: defaultAlphaVantageURL,
		apiKey:  apiKey,
		cli:     &http.Client{Timeout: timeout},
		cache:   newQuoteCache(ttl),
	}
}

func (p *AlphaVantageProvider) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return decimal.Decimal{}, errNoQuote
	}

	if price, ok := p.cache.get(symbol); ok {
		return price, nil
	}

	u := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		p.baseURL, url.QueryEscape(symbol), url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "foliotrack/1.0")

	resp, err := p.cli.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("alphavantage returned status %d", resp.StatusCode)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse response: %w", err)
	}
	if _, ok := raw["Note"]; ok {
		return decimal.Decimal{}, errRateLimited
	}
	if _, ok := raw["Information"]; ok {
		return decimal.Decimal{}, errRateLimited
	}
	gq, ok := raw["Global Quote"].(map[string]any)
	if !ok || len(gq) == 0 {
		return decimal.Decimal{}, errNoQuote
	}

	priceStr, _ := gq["05. price"].(string)
	price, err := decimal.NewFromString(priceStr)
	if err != nil || !price.IsPositive() {
		return decimal.Decimal{}, errNoQuote
	}

	p.cache.put(symbol, price)
	return price, nil
}
