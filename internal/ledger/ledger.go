// Package ledger owns the mapping from (owner, symbol, asset class) to a
// held position and applies buy and sell lots against it using
// average-cost-basis accounting.
//
// Quantities, prices and costs are decimals end to end, so "fully sold"
// is an exact comparison and repeated average-cost recomputation cannot
// drift the way float subtraction does.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/avicke/foliotrack/internal/logger"
	"github.com/avicke/foliotrack/internal/pricing"
	"github.com/avicke/foliotrack/internal/storage"
)

// Store is the slice of the repository the ledger needs: single-position
// read-modify-write plus append-only sell records.
type Store interface {
	GetPosition(ownerID, symbol string, class storage.AssetClass) (*storage.Position, error)
	UpsertPosition(pos *storage.Position) error
	DeletePosition(ownerID, symbol string, class storage.AssetClass) error
	SaveTransaction(tx *storage.Transaction) error
}

type Ledger struct {
	store  Store
	oracle pricing.Oracle
	locks  *keyLock
	logger *logger.Logger
}

func New(store Store, oracle pricing.Oracle, log *logger.Logger) *Ledger {
	return &Ledger{
		store:  store,
		oracle: oracle,
		locks:  newKeyLock(),
		logger: log,
	}
}

// CanonicalSymbol is the single stored/compared form of a ticker.
func CanonicalSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func positionKey(ownerID, symbol string, class storage.AssetClass) string {
	return ownerID + "|" + symbol + "|" + string(class)
}

// ApplyBuy records a buy-lot. A first buy creates the position at the buy
// price; a subsequent buy folds the lot into the quantity-weighted average
// cost. The returned position holds full-precision values.
func (l *Ledger) ApplyBuy(ctx context.Context, ownerID, symbol string, class storage.AssetClass, quantity, price decimal.Decimal) (*storage.Position, error) {
	symbol = CanonicalSymbol(symbol)
	if err := validateKey(symbol, class); err != nil {
		return nil, err
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}

	unlock := l.locks.lock(positionKey(ownerID, symbol, class))
	defer unlock()

	pos, err := l.store.GetPosition(ownerID, symbol, class)
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}

	if pos == nil {
		pos = &storage.Position{
			OwnerID:     ownerID,
			Symbol:      symbol,
			AssetClass:  class,
			Quantity:    quantity,
			AverageCost: price,
		}
	} else {
		newQuantity := pos.Quantity.Add(quantity)
		totalCost := pos.Quantity.Mul(pos.AverageCost).Add(quantity.Mul(price))
		pos.AverageCost = totalCost.Div(newQuantity)
		pos.Quantity = newQuantity
	}

	if err := l.store.UpsertPosition(pos); err != nil {
		return nil, fmt.Errorf("store position: %w", err)
	}

	l.logger.Info("buy applied",
		"owner", ownerID, "symbol", symbol, "class", string(class),
		"quantity", quantity.String(), "price", price.String(),
		"new_quantity", pos.Quantity.String(), "new_average_cost", pos.AverageCost.String())
	return pos, nil
}

// ApplySell reduces the position by the sold quantity at the oracle's
// current price, appends the immutable sell record, and deletes the
// position once nothing remains. Average cost is invariant under partial
// sells. The returned position is nil when the position was closed.
func (l *Ledger) ApplySell(ctx context.Context, ownerID, symbol string, class storage.AssetClass, quantity decimal.Decimal) (*storage.Transaction, *storage.Position, error) {
	symbol = CanonicalSymbol(symbol)
	if err := validateKey(symbol, class); err != nil {
		return nil, nil, err
	}
	if !quantity.IsPositive() {
		return nil, nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	unlock := l.locks.lock(positionKey(ownerID, symbol, class))
	defer unlock()

	pos, err := l.store.GetPosition(ownerID, symbol, class)
	if err != nil {
		return nil, nil, fmt.Errorf("load position: %w", err)
	}
	if pos == nil {
		return nil, nil, ErrPositionNotFound
	}
	if quantity.GreaterThan(pos.Quantity) {
		return nil, nil, fmt.Errorf("%w: sell quantity %s exceeds held quantity %s",
			ErrInvalidInput, quantity.String(), pos.Quantity.String())
	}

	price, err := l.oracle.LookupPrice(ctx, symbol, class)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s/%s", ErrPriceUnavailable, symbol, class)
	}

	costBasis := quantity.Mul(pos.AverageCost)
	saleValue := quantity.Mul(price)
	realized := saleValue.Sub(costBasis)

	tx := &storage.Transaction{
		OwnerID:     ownerID,
		Symbol:      symbol,
		AssetClass:  class,
		Quantity:    quantity,
		SalePrice:   price,
		CostBasis:   costBasis,
		RealizedPnL: realized,
	}
	if err := l.store.SaveTransaction(tx); err != nil {
		return nil, nil, fmt.Errorf("record transaction: %w", err)
	}

	remaining := pos.Quantity.Sub(quantity)
	if !remaining.IsPositive() {
		if err := l.store.DeletePosition(ownerID, symbol, class); err != nil {
			return nil, nil, fmt.Errorf("close position: %w", err)
		}
		l.logger.Info("position closed",
			"owner", ownerID, "symbol", symbol, "class", string(class),
			"realized_pnl", realized.String())
		return tx, nil, nil
	}

	pos.Quantity = remaining
	if err := l.store.UpsertPosition(pos); err != nil {
		return nil, nil, fmt.Errorf("store position: %w", err)
	}

	l.logger.Info("sell applied",
		"owner", ownerID, "symbol", symbol, "class", string(class),
		"quantity", quantity.String(), "price", price.String(),
		"remaining", remaining.String(), "realized_pnl", realized.String())
	return tx, pos, nil
}

// SetPosition overwrites quantity and average cost on an existing
// position, for manual corrections.
func (l *Ledger) SetPosition(ownerID, symbol string, class storage.AssetClass, quantity, averageCost decimal.Decimal) (*storage.Position, error) {
	symbol = CanonicalSymbol(symbol)
	if err := validateKey(symbol, class); err != nil {
		return nil, err
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if !averageCost.IsPositive() {
		return nil, fmt.Errorf("%w: average cost must be positive", ErrInvalidInput)
	}

	unlock := l.locks.lock(positionKey(ownerID, symbol, class))
	defer unlock()

	pos, err := l.store.GetPosition(ownerID, symbol, class)
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}
	if pos == nil {
		return nil, ErrPositionNotFound
	}

	pos.Quantity = quantity
	pos.AverageCost = averageCost
	if err := l.store.UpsertPosition(pos); err != nil {
		return nil, fmt.Errorf("store position: %w", err)
	}

	l.logger.Info("position edited",
		"owner", ownerID, "symbol", symbol, "class", string(class),
		"quantity", quantity.String(), "average_cost", averageCost.String())
	return pos, nil
}

// RemovePosition deletes the position regardless of quantity. Removing a
// position that does not exist is a no-op.
func (l *Ledger) RemovePosition(ownerID, symbol string, class storage.AssetClass) error {
	symbol = CanonicalSymbol(symbol)
	if err := validateKey(symbol, class); err != nil {
		return err
	}

	unlock := l.locks.lock(positionKey(ownerID, symbol, class))
	defer unlock()

	if err := l.store.DeletePosition(ownerID, symbol, class); err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	l.logger.Info("position removed", "owner", ownerID, "symbol", symbol, "class", string(class))
	return nil
}

func validateKey(symbol string, class storage.AssetClass) error {
	if symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidInput)
	}
	if !class.Valid() {
		return fmt.Errorf("%w: unknown asset class %q", ErrInvalidInput, string(class))
	}
	return nil
}
