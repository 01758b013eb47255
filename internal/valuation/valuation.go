// Package valuation is the read side: it merges stored positions with
// live oracle prices into per-position values and a portfolio total. It
// never mutates the ledger.
package valuation

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/avicke/foliotrack/internal/logger"
	"github.com/avicke/foliotrack/internal/pricing"
	"github.com/avicke/foliotrack/internal/storage"
)

// ValuedPosition is a position plus its market snapshot, rounded to two
// decimals for presentation. Priced is false when the oracle had no quote;
// such positions carry zero value/P&L and are excluded from the total.
type ValuedPosition struct {
	Symbol        string             `json:"symbol"`
	AssetClass    storage.AssetClass `json:"asset_class"`
	Quantity      decimal.Decimal    `json:"quantity"`
	AverageCost   decimal.Decimal    `json:"average_cost"`
	Priced        bool               `json:"priced"`
	CurrentPrice  decimal.Decimal    `json:"current_price"`
	CurrentValue  decimal.Decimal    `json:"current_value"`
	UnrealizedPnL decimal.Decimal    `json:"unrealized_pnl"`
}

type Portfolio struct {
	Positions  []ValuedPosition `json:"positions"`
	TotalValue decimal.Decimal  `json:"total_value"`
}

// Filter narrows a portfolio view. Symbol is a case-insensitive substring
// match; Class, when set, must match exactly.
type Filter struct {
	Symbol string
	Class  storage.AssetClass
}

type SortKey string

const (
	SortDefault       SortKey = ""
	SortCurrentValue  SortKey = "current_value"
	SortUnrealizedPnL SortKey = "unrealized_pnl"
	SortCurrentPrice  SortKey = "current_price"
)

type Engine struct {
	oracle      pricing.Oracle
	concurrency int
	logger      *logger.Logger
}

// NewEngine bounds the oracle fan-out at concurrency lookups in flight.
func NewEngine(oracle pricing.Oracle, concurrency int, log *logger.Logger) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{oracle: oracle, concurrency: concurrency, logger: log}
}

// ValuePosition never fails: a missing quote is a normal outcome reported
// through Priced=false.
func (e *Engine) ValuePosition(ctx context.Context, pos storage.Position) ValuedPosition {
	vp := ValuedPosition{
		Symbol:      pos.Symbol,
		AssetClass:  pos.AssetClass,
		Quantity:    pos.Quantity,
		AverageCost: pos.AverageCost.Round(2),
	}

	price, err := e.oracle.LookupPrice(ctx, pos.Symbol, pos.AssetClass)
	if err != nil {
		return vp
	}

	vp.Priced = true
	vp.CurrentPrice = price
	vp.CurrentValue = price.Mul(pos.Quantity).Round(2)
	vp.UnrealizedPnL = price.Sub(pos.AverageCost).Mul(pos.Quantity).Round(2)
	return vp
}

// ValuePortfolio filters, values (concurrently, bounded), totals and sorts.
// Unpriced positions stay in the list but contribute nothing to the total.
func (e *Engine) ValuePortfolio(ctx context.Context, positions []storage.Position, filter Filter, sortKey SortKey) Portfolio {
	filtered := make([]storage.Position, 0, len(positions))
	for _, pos := range positions {
		if filter.Class != "" && pos.AssetClass != filter.Class {
			continue
		}
		if filter.Symbol != "" &&
			!strings.Contains(strings.ToUpper(pos.Symbol), strings.ToUpper(filter.Symbol)) {
			continue
		}
		filtered = append(filtered, pos)
	}

	valued := make([]ValuedPosition, len(filtered))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, pos := range filtered {
		i, pos := i, pos
		g.Go(func() error {
			valued[i] = e.ValuePosition(gctx, pos)
			return nil
		})
	}
	_ = g.Wait() // lookups never return errors, misses degrade to unpriced

	total := decimal.Zero
	for _, vp := range valued {
		if vp.Priced {
			total = total.Add(vp.CurrentValue)
		}
	}

	sortValued(valued, sortKey)

	return Portfolio{Positions: valued, TotalValue: total.Round(2)}
}

// Recognized keys sort descending; anything else keeps fetch order.
func sortValued(valued []ValuedPosition, key SortKey) {
	var field func(ValuedPosition) decimal.Decimal
	switch key {
	case SortCurrentValue:
		field = func(vp ValuedPosition) decimal.Decimal { return vp.CurrentValue }
	case SortUnrealizedPnL:
		field = func(vp ValuedPosition) decimal.Decimal { return vp.UnrealizedPnL }
	case SortCurrentPrice:
		field = func(vp ValuedPosition) decimal.Decimal { return vp.CurrentPrice }
	default:
		return
	}
	sort.SliceStable(valued, func(i, j int) bool {
		return field(valued[i]).GreaterThan(field(valued[j]))
	})
}
