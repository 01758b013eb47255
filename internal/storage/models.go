package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetClass distinguishes the two supported markets. It is part of the
// position identity key: the same symbol may exist once per class.
type AssetClass string

const (
	AssetStock  AssetClass = "stock"
	AssetCrypto AssetClass = "crypto"
)

func (c AssetClass) Valid() bool {
	return c == AssetStock || c == AssetCrypto
}

type User struct {
	ID        string    `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`
}

// Position is one holding per (owner, symbol, asset class). Quantity and
// average cost are stored as decimals at full precision; rounding happens
// only at presentation time.
type Position struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OwnerID    string     `gorm:"index:idx_position_key,unique;not null" json:"owner_id"`
	Symbol     string     `gorm:"index:idx_position_key,unique;not null" json:"symbol"`
	AssetClass AssetClass `gorm:"index:idx_position_key,unique;not null" json:"asset_class"`

	Quantity    decimal.Decimal `gorm:"type:numeric;not null" json:"quantity"`
	AverageCost decimal.Decimal `gorm:"type:numeric;not null" json:"average_cost"`
}

// Transaction records one sell. Rows are append-only: the repository
// exposes no update or delete for them.
type Transaction struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	OwnerID    string     `gorm:"index;not null" json:"owner_id"`
	Symbol     string     `gorm:"not null" json:"symbol"`
	AssetClass AssetClass `gorm:"not null" json:"asset_class"`

	Quantity    decimal.Decimal `gorm:"type:numeric;not null" json:"quantity"`
	SalePrice   decimal.Decimal `gorm:"type:numeric;not null" json:"sale_price"`
	CostBasis   decimal.Decimal `gorm:"type:numeric;not null" json:"cost_basis"`
	RealizedPnL decimal.Decimal `gorm:"column:realized_pnl;type:numeric;not null" json:"realized_pnl"`
}

type PortfolioSnapshot struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	OwnerID        string          `gorm:"index;not null" json:"owner_id"`
	TotalValue     decimal.Decimal `gorm:"type:numeric;not null" json:"total_value"`
	PositionsCount int             `json:"positions_count"`
	UnpricedCount  int             `json:"unpriced_count"`
}
