package ports

import "context"

// QuoteProvider defines the interface for fetching the last traded price of
// a symbol. Implementations should wrap provider failures with
// ErrQuoteUnavailable so callers can degrade gracefully.
type QuoteProvider interface {
	// LastPrice returns the last traded price for a symbol.
	LastPrice(ctx context.Context, symbol string) (float64, error)
}
