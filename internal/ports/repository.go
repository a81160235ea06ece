package ports

import (
	"context"

	"tradejournal/internal/domain"
)

// TradeRepository defines the interface for storing and retrieving trades.
type TradeRepository interface {
	// Create saves a new trade, assigning its ID when empty.
	Create(ctx context.Context, trade *domain.Trade) error
	// CreateMany saves a batch of new trades.
	CreateMany(ctx context.Context, trades []*domain.Trade) error
	// Update replaces an existing trade aggregate.
	Update(ctx context.Context, trade *domain.Trade) error
	// Delete removes a trade by ID. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
	// FindByID retrieves a trade by ID. Returns nil, nil if not found.
	FindByID(ctx context.Context, id string) (*domain.Trade, error)
	// FindAll retrieves all trades, ordered by entry date descending.
	FindAll(ctx context.Context) ([]*domain.Trade, error)
	// FindBySymbols retrieves all trades for the given symbols, ordered by
	// entry date ascending (oldest first, as the reconciler expects).
	FindBySymbols(ctx context.Context, symbols []string) ([]*domain.Trade, error)
	// DeleteByImportBatch removes every trade referencing the batch and
	// returns the number deleted.
	DeleteByImportBatch(ctx context.Context, batchID string) (int, error)
	// CountByImportBatch returns trade counts keyed by import batch ID.
	CountByImportBatch(ctx context.Context) (map[string]int, error)
}

// ImportBatchRepository defines the interface for storing import batches.
type ImportBatchRepository interface {
	// CreateBatch saves a new import batch, assigning its ID when empty.
	CreateBatch(ctx context.Context, batch *domain.ImportBatch) error
	// FindBatchByID retrieves a batch including its preview rows.
	// Returns nil, nil if not found.
	FindBatchByID(ctx context.Context, id string) (*domain.ImportBatch, error)
	// FindAllBatches retrieves all batches without preview rows, newest first.
	FindAllBatches(ctx context.Context) ([]*domain.ImportBatch, error)
	// DeleteBatch removes a batch by ID. Returns ErrNotFound if missing.
	DeleteBatch(ctx context.Context, id string) error
}

// SettingsRepository defines the interface for the account settings document.
type SettingsRepository interface {
	// GetSettings returns the stored settings, or zero-value settings when
	// none have been saved yet.
	GetSettings(ctx context.Context) (domain.Settings, error)
	// SaveSettings persists the settings document.
	SaveSettings(ctx context.Context, settings domain.Settings) error
}
