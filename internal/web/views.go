package web

import (
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/avicke/foliotrack/internal/storage"
	"github.com/avicke/foliotrack/internal/valuation"
)

// Valuations are USD throughout: CoinGecko quotes vs_currency=usd and the
// equities providers quote US listings.
func displayUSD(d decimal.Decimal) string {
	return money.NewFromFloat(d.InexactFloat64(), money.USD).Display()
}

type positionView struct {
	Symbol      string             `json:"symbol"`
	AssetClass  storage.AssetClass `json:"asset_class"`
	Quantity    decimal.Decimal    `json:"quantity"`
	AverageCost decimal.Decimal    `json:"average_cost"`
}

func newPositionView(pos *storage.Position) positionView {
	return positionView{
		Symbol:      pos.Symbol,
		AssetClass:  pos.AssetClass,
		Quantity:    pos.Quantity,
		AverageCost: pos.AverageCost.Round(2),
	}
}

type transactionView struct {
	ID                 uint               `json:"id"`
	Symbol             string             `json:"symbol"`
	AssetClass         storage.AssetClass `json:"asset_class"`
	Quantity           decimal.Decimal    `json:"quantity"`
	SalePrice          decimal.Decimal    `json:"sale_price"`
	CostBasis          decimal.Decimal    `json:"cost_basis"`
	RealizedPnL        decimal.Decimal    `json:"realized_pnl"`
	RealizedPnLDisplay string             `json:"realized_pnl_display"`
	Timestamp          time.Time          `json:"timestamp"`
}

func newTransactionView(tx *storage.Transaction) transactionView {
	return transactionView{
		ID:                 tx.ID,
		Symbol:             tx.Symbol,
		AssetClass:         tx.AssetClass,
		Quantity:           tx.Quantity,
		SalePrice:          tx.SalePrice,
		CostBasis:          tx.CostBasis,
		RealizedPnL:        tx.RealizedPnL,
		RealizedPnLDisplay: displayUSD(tx.RealizedPnL),
		Timestamp:          tx.CreatedAt,
	}
}

type valuedPositionView struct {
	valuation.ValuedPosition
	CurrentPriceDisplay  string `json:"current_price_display"`
	CurrentValueDisplay  string `json:"current_value_display"`
	UnrealizedPnLDisplay string `json:"unrealized_pnl_display"`
}

type portfolioResponse struct {
	Positions         []valuedPositionView `json:"positions"`
	TotalValue        decimal.Decimal      `json:"total_value"`
	TotalValueDisplay string               `json:"total_value_display"`
}

func newPortfolioResponse(pf valuation.Portfolio) portfolioResponse {
	views := make([]valuedPositionView, 0, len(pf.Positions))
	for _, vp := range pf.Positions {
		view := valuedPositionView{
			ValuedPosition:       vp,
			CurrentPriceDisplay:  "N/A",
			CurrentValueDisplay:  displayUSD(vp.CurrentValue),
			UnrealizedPnLDisplay: displayUSD(vp.UnrealizedPnL),
		}
		if vp.Priced {
			view.CurrentPriceDisplay = displayUSD(vp.CurrentPrice)
		}
		views = append(views, view)
	}
	return portfolioResponse{
		Positions:         views,
		TotalValue:        pf.TotalValue,
		TotalValueDisplay: displayUSD(pf.TotalValue),
	}
}
