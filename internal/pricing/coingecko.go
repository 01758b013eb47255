package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

var errNoQuote = errors.New("no quote in response")

// CoinGeckoProvider quotes cryptocurrencies in USD via the simple-price
// endpoint. Symbols are CoinGecko coin ids ("bitcoin", "ethereum").
type CoinGeckoProvider struct {
	baseURL string
	cli     *http.Client
	cache   *quoteCache
}

func NewCoinGeckoProvider(timeout, ttl time.Duration) *CoinGeckoProvider {
	return &CoinGeckoProvider{
		baseURL: defaultCoinGeckoURL,
		cli:     &http.Client{Timeout: timeout},
		cache:   newQuoteCache(ttl),
	}
}

func (p *CoinGeckoProvider) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	id := strings.ToLower(strings.TrimSpace(symbol))
	if id == "" {
		return decimal.Decimal{}, errNoQuote
	}

	if price, ok := p.cache.get(id); ok {
		return price, nil
	}

	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", p.baseURL, url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.cli.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("coingecko returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("read response: %w", err)
	}

	// {"bitcoin":{"usd":64123.5}}
	var raw map[string]map[string]json.Number
	if err := json.Unmarshal(body, &raw); err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse response: %w", err)
	}
	quote, ok := raw[id]
	if !ok {
		return decimal.Decimal{}, errNoQuote
	}
	usd, ok := quote["usd"]
	if !ok {
		return decimal.Decimal{}, errNoQuote
	}

	price, err := decimal.NewFromString(usd.String())
	if err != nil || !price.IsPositive() {
		return decimal.Decimal{}, errNoQuote
	}

	p.cache.put(id, price)
	return price, nil
}
