package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultYahooURL = "https://query2.finance.yahoo.com"

// YahooProvider quotes equities via the v8 chart endpoint. No API key.
type YahooProvider struct {
	baseURL string
	cli     *http.Client
	cache   *quoteCache
}

func NewYahooProvider(timeout, ttl time.Duration) *YahooProvider {
	return &YahooProvider{
		baseURL: defaultYahooURL,
		cli:     &http.Client{Timeout: timeout},
		cache:   newQuoteCache(ttl),
	}
}

func (p *YahooProvider) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return decimal.Decimal{}, errNoQuote
	}

	if price, ok := p.cache.get(symbol); ok {
		return price, nil
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1m&range=1d", p.baseURL, symbol)
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
		return decimal.Decimal{}, fmt.Errorf("yahoo returned status %d", resp.StatusCode)
	}

	var raw struct {
		Chart struct {
			Result []struct {
				Meta struct {
					RegularMarketPrice float64 `json:"regularMarketPrice"`
					RegularMarketTime  int64   `json:"regularMarketTime"`
				} `json:"meta"`
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Close []float64 `json:"close"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error any `json:"error"`
		} `json:"chart"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse response: %w", err)
	}
	if len(raw.Chart.Result) == 0 {
		return decimal.Decimal{}, errNoQuote
	}

	r := raw.Chart.Result[0]
	quote := r.Meta.RegularMarketPrice

	// Fall back to the last non-zero close when meta is missing.
	if quote <= 0 && len(r.Timestamp) > 0 && len(r.Indicators.Quote) > 0 &&
		len(r.Indicators.Quote[0].Close) == len(r.Timestamp) {
		for i := len(r.Timestamp) - 1; i >= 0; i-- {
			if c := r.Indicators.Quote[0].Close[i]; c > 0 {
				quote = c
				break
			}
		}
	}
	if quote <= 0 {
		return decimal.Decimal{}, errNoQuote
	}

	price := decimal.NewFromFloat(quote)
	p.cache.put(symbol, price)
	return price, nil
}
