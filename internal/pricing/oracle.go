package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avicke/foliotrack/internal/config"
	"github.com/avicke/foliotrack/internal/logger"
	"github.com/avicke/foliotrack/internal/storage"
)

// ErrUnavailable is the single failure mode callers see. Network errors,
// unknown symbols, rate limits and malformed responses all collapse to it.
var ErrUnavailable = errors.New("price unavailable")

// Oracle answers "what is this asset worth right now", best effort.
type Oracle interface {
	LookupPrice(ctx context.Context, symbol string, class storage.AssetClass) (decimal.Decimal, error)
}

// Provider fetches a quote from one upstream market-data API.
type Provider interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Router dispatches lookups to the crypto or equities provider and
// normalizes every failure to ErrUnavailable.
type Router struct {
	stocks  Provider
	crypto  Provider
	timeout time.Duration
	logger  *logger.Logger
}

func NewRouter(cfg *config.Config, log *logger.Logger) *Router {
	timeout := cfg.PricingTimeout()
	ttl := cfg.PricingCacheTTL()

	var stocks Provider
	switch cfg.Pricing.StockProvider {
	case "alphavantage":
		stocks = NewAlphaVantageProvider(cfg.Pricing.AlphaVantageKey, timeout, ttl)
	default:
		stocks = NewYahooProvider(timeout, ttl)
	}

	return &Router{
		stocks:  stocks,
		crypto:  NewCoinGeckoProvider(timeout, ttl),
		timeout: timeout,
		logger:  log,
	}
}

func (r *Router) LookupPrice(ctx context.Context, symbol string, class storage.AssetClass) (decimal.Decimal, error) {
	var p Provider
	switch class {
	case storage.AssetCrypto:
		p = r.crypto
	case storage.AssetStock:
		p = r.stocks
	default:
		return decimal.Decimal{}, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	price, err := p.GetPrice(ctx, symbol)
	if err != nil {
		r.logger.Debug("price lookup failed", "symbol", symbol, "class", string(class), "error", err)
		return decimal.Decimal{}, ErrUnavailable
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, ErrUnavailable
	}
	return price, nil
}
