package ledger

import "errors"

var (
	// ErrInvalidInput covers non-positive quantities/prices, unknown asset
	// classes and over-quantity sells. Surfaced before any mutation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPositionNotFound is returned when a sell or edit targets a key
	// with no stored position.
	ErrPositionNotFound = errors.New("position not found")

	// ErrPriceUnavailable is returned by ApplySell when the oracle cannot
	// produce a price; realized P&L cannot be computed without one.
	ErrPriceUnavailable = errors.New("price unavailable")
)
