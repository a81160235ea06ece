// Package kite provides live last-traded prices through the Zerodha Kite
// Connect API, implementing ports.QuoteProvider.
package kite

import (
	"context"
	"fmt"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"tradejournal/internal/ports"
)

// Client fetches last traded prices from Kite Connect.
type Client struct {
	kc       *kiteconnect.Client
	exchange string
	logger   ports.Logger
}

// Config holds configuration for the Kite quote client.
type Config struct {
	APIKey      string
	AccessToken string
	// Exchange prefixes instrument lookups; defaults to NSE.
	Exchange string
	Logger   ports.Logger
}

// NewClient creates a Kite Connect quote client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Kite client")
	}
	if cfg.APIKey == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("%w: Kite API key and access token are required", ports.ErrConfigurationError)
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "NSE"
	}

	kc := kiteconnect.New(cfg.APIKey)
	kc.SetAccessToken(cfg.AccessToken)

	return &Client{kc: kc, exchange: exchange, logger: cfg.Logger}, nil
}

// LastPrice returns the last traded price for an equity symbol.
func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	instrument := c.exchange + ":" + symbol

	quotes, err := c.kc.GetLTP(instrument)
	if err != nil {
		c.logger.Warn(ctx, "Kite LTP request failed", map[string]interface{}{
			"instrument": instrument, "error": err.Error(),
		})
		return 0, fmt.Errorf("%w: %s: %v", ports.ErrQuoteUnavailable, instrument, err)
	}

	quote, ok := quotes[instrument]
	if !ok || quote.LastPrice <= 0 {
		return 0, fmt.Errorf("%w: no quote returned for %s", ports.ErrQuoteUnavailable, instrument)
	}
	return quote.LastPrice, nil
}
