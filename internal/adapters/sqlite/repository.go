package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"tradejournal/internal/domain"
	"tradejournal/internal/ports"
)

// Repository implements ports.TradeRepository, ports.ImportBatchRepository
// and ports.SettingsRepository using SQLite. Trade sub-documents (pyramids,
// exits, stop-loss adjustments, tags) are stored as JSON columns: they are
// always read and written with their parent aggregate.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/tradejournal.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_date TIMESTAMP NOT NULL,
		entry_price REAL NOT NULL,
		entry_qty REAL NOT NULL,
		stop_loss REAL NOT NULL,
		pyramids TEXT NOT NULL DEFAULT '[]',
		exits TEXT NOT NULL DEFAULT '[]',
		stop_loss_adjustments TEXT NOT NULL DEFAULT '[]',
		charges REAL NOT NULL DEFAULT 0,
		last_price REAL DEFAULT NULL,
		strategy TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		import_batch_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS import_batches (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		file_name TEXT NOT NULL DEFAULT '',
		imported_count INTEGER NOT NULL DEFAULT 0,
		preview_rows TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		total_capital REAL NOT NULL DEFAULT 0,
		default_charges REAL NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades (symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_entry_date ON trades (entry_date);
	CREATE INDEX IF NOT EXISTS idx_trades_import_batch ON trades (import_batch_id);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- TradeRepository Implementation ---

const tradeColumns = `id, symbol, side, entry_date, entry_price, entry_qty, stop_loss,
	pyramids, exits, stop_loss_adjustments, charges, last_price, strategy, notes, tags,
	import_batch_id, created_at, updated_at`

// Create saves a new trade, assigning its ID and timestamps when empty.
func (r *Repository) Create(ctx context.Context, trade *domain.Trade) error {
	return r.insertTrade(ctx, r.db, trade)
}

// CreateMany saves a batch of trades in a single transaction.
func (r *Repository) CreateMany(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, trade := range trades {
		if err := r.insertTrade(ctx, tx, trade); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trade batch: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *Repository) insertTrade(ctx context.Context, db execer, trade *domain.Trade) error {
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = now
	}
	if trade.UpdatedAt.IsZero() {
		trade.UpdatedAt = now
	}

	pyramids, exits, adjustments, tags, err := marshalTradeDocs(trade)
	if err != nil {
		return err
	}

	const query = `
	INSERT INTO trades (` + tradeColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = db.ExecContext(ctx, query,
		trade.ID, trade.Symbol, string(trade.Side), trade.EntryDate, trade.EntryPrice,
		trade.EntryQty, trade.StopLoss, pyramids, exits, adjustments, trade.Charges,
		nullFloat(trade.LastPrice), trade.Strategy, trade.Notes, tags,
		trade.ImportBatchID, trade.CreatedAt, trade.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: failed to insert trade for symbol %s: %v", ports.ErrQueryFailed, trade.Symbol, err)
	}
	return nil
}

// Update replaces an existing trade aggregate.
func (r *Repository) Update(ctx context.Context, trade *domain.Trade) error {
	pyramids, exits, adjustments, tags, err := marshalTradeDocs(trade)
	if err != nil {
		return err
	}
	if trade.UpdatedAt.IsZero() {
		trade.UpdatedAt = time.Now().UTC()
	}

	const query = `
	UPDATE trades SET symbol = ?, side = ?, entry_date = ?, entry_price = ?, entry_qty = ?,
		stop_loss = ?, pyramids = ?, exits = ?, stop_loss_adjustments = ?, charges = ?,
		last_price = ?, strategy = ?, notes = ?, tags = ?, import_batch_id = ?, updated_at = ?
	WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		trade.Symbol, string(trade.Side), trade.EntryDate, trade.EntryPrice, trade.EntryQty,
		trade.StopLoss, pyramids, exits, adjustments, trade.Charges,
		nullFloat(trade.LastPrice), trade.Strategy, trade.Notes, tags,
		trade.ImportBatchID, trade.UpdatedAt, trade.ID)
	if err != nil {
		return fmt.Errorf("%w: failed to update trade %s: %v", ports.ErrUpdateFailed, trade.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get affected rows for trade %s: %v", ports.ErrUpdateFailed, trade.ID, err)
	}
	if rows == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Delete removes a trade by ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM trades WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete trade %s: %v", ports.ErrDeleteFailed, id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get affected rows for trade %s: %v", ports.ErrDeleteFailed, id, err)
	}
	if rows == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// FindByID retrieves a trade by ID. Returns nil, nil if not found.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = ?`
	trade, err := scanTrade(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query trade %s: %v", ports.ErrQueryFailed, id, err)
	}
	return trade, nil
}

// FindAll retrieves all trades ordered by entry date descending.
func (r *Repository) FindAll(ctx context.Context) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades ORDER BY entry_date DESC, created_at DESC`
	return r.queryTrades(ctx, query)
}

// FindBySymbols retrieves trades for the given symbols, entry date ascending.
func (r *Repository) FindBySymbols(ctx context.Context, symbols []string) ([]*domain.Trade, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(symbols))
	placeholders = placeholders[:len(placeholders)-1]
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE symbol IN (` + placeholders + `)
	ORDER BY entry_date ASC, created_at ASC`

	args := make([]interface{}, len(symbols))
	for i, s := range symbols {
		args[i] = s
	}
	return r.queryTrades(ctx, query, args...)
}

// DeleteByImportBatch removes every trade referencing the batch.
func (r *Repository) DeleteByImportBatch(ctx context.Context, batchID string) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM trades WHERE import_batch_id = ?`, batchID)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete trades for batch %s: %v", ports.ErrDeleteFailed, batchID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get affected rows for batch %s: %v", ports.ErrDeleteFailed, batchID, err)
	}
	return int(rows), nil
}

// CountByImportBatch returns trade counts keyed by import batch ID.
func (r *Repository) CountByImportBatch(ctx context.Context) (map[string]int, error) {
	const query = `SELECT import_batch_id, COUNT(*) FROM trades WHERE import_batch_id != '' GROUP BY import_batch_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count trades per batch: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var batchID string
		var count int
		if err := rows.Scan(&batchID, &count); err != nil {
			return nil, fmt.Errorf("%w: failed to scan batch count: %v", ports.ErrQueryFailed, err)
		}
		counts[batchID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: batch count iteration failed: %v", ports.ErrQueryFailed, err)
	}
	return counts, nil
}

func (r *Repository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query trades: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan trade: %v", ports.ErrQueryFailed, err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: trade iteration failed: %v", ports.ErrQueryFailed, err)
	}
	return trades, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*domain.Trade, error) {
	var (
		trade       domain.Trade
		side        string
		pyramids    string
		exits       string
		adjustments string
		tags        string
		lastPrice   sql.NullFloat64
	)
	err := row.Scan(&trade.ID, &trade.Symbol, &side, &trade.EntryDate, &trade.EntryPrice,
		&trade.EntryQty, &trade.StopLoss, &pyramids, &exits, &adjustments, &trade.Charges,
		&lastPrice, &trade.Strategy, &trade.Notes, &tags, &trade.ImportBatchID,
		&trade.CreatedAt, &trade.UpdatedAt)
	if err != nil {
		return nil, err
	}

	trade.Side = domain.Side(side)
	if lastPrice.Valid {
		lp := lastPrice.Float64
		trade.LastPrice = &lp
	}
	if err := json.Unmarshal([]byte(pyramids), &trade.Pyramids); err != nil {
		return nil, fmt.Errorf("invalid pyramids JSON for trade %s: %w", trade.ID, err)
	}
	if err := json.Unmarshal([]byte(exits), &trade.Exits); err != nil {
		return nil, fmt.Errorf("invalid exits JSON for trade %s: %w", trade.ID, err)
	}
	if err := json.Unmarshal([]byte(adjustments), &trade.StopLossAdjustments); err != nil {
		return nil, fmt.Errorf("invalid stop-loss adjustments JSON for trade %s: %w", trade.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &trade.Tags); err != nil {
		return nil, fmt.Errorf("invalid tags JSON for trade %s: %w", trade.ID, err)
	}
	return &trade, nil
}

func marshalTradeDocs(trade *domain.Trade) (pyramids, exits, adjustments, tags string, err error) {
	pyramids, err = marshalSlice(trade.Pyramids)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to marshal pyramids for trade %s: %w", trade.ID, err)
	}
	exits, err = marshalSlice(trade.Exits)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to marshal exits for trade %s: %w", trade.ID, err)
	}
	adjustments, err = marshalSlice(trade.StopLossAdjustments)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to marshal stop-loss adjustments for trade %s: %w", trade.ID, err)
	}
	tags, err = marshalSlice(trade.Tags)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to marshal tags for trade %s: %w", trade.ID, err)
	}
	return pyramids, exits, adjustments, tags, nil
}

// marshalSlice keeps nil slices as empty JSON arrays so scans round-trip.
func marshalSlice(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	s := string(data)
	if s == "null" {
		s = "[]"
	}
	return s, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// --- ImportBatchRepository Implementation ---

// CreateBatch saves a new import batch, assigning its ID when empty.
func (r *Repository) CreateBatch(ctx context.Context, batch *domain.ImportBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	previewRows, err := marshalSlice(batch.PreviewRows)
	if err != nil {
		return fmt.Errorf("failed to marshal preview rows for batch %s: %w", batch.ID, err)
	}

	const query = `
	INSERT INTO import_batches (id, source, file_name, imported_count, preview_rows, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		batch.ID, string(batch.Source), batch.FileName, batch.ImportedCount, previewRows, batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: failed to insert import batch: %v", ports.ErrQueryFailed, err)
	}
	return nil
}

// FindBatchByID retrieves a batch including preview rows. Returns nil, nil
// if not found.
func (r *Repository) FindBatchByID(ctx context.Context, id string) (*domain.ImportBatch, error) {
	const query = `SELECT id, source, file_name, imported_count, preview_rows, created_at
	FROM import_batches WHERE id = ?`

	var (
		batch       domain.ImportBatch
		source      string
		previewRows string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&batch.ID, &source, &batch.FileName, &batch.ImportedCount, &previewRows, &batch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query import batch %s: %v", ports.ErrQueryFailed, id, err)
	}
	batch.Source = domain.ImportSource(source)
	if err := json.Unmarshal([]byte(previewRows), &batch.PreviewRows); err != nil {
		return nil, fmt.Errorf("invalid preview rows JSON for batch %s: %w", batch.ID, err)
	}
	return &batch, nil
}

// FindAllBatches retrieves all batches without preview rows, newest first.
func (r *Repository) FindAllBatches(ctx context.Context) ([]*domain.ImportBatch, error) {
	const query = `SELECT id, source, file_name, imported_count, created_at
	FROM import_batches ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query import batches: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var batches []*domain.ImportBatch
	for rows.Next() {
		var batch domain.ImportBatch
		var source string
		if err := rows.Scan(&batch.ID, &source, &batch.FileName, &batch.ImportedCount, &batch.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan import batch: %v", ports.ErrQueryFailed, err)
		}
		batch.Source = domain.ImportSource(source)
		batches = append(batches, &batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: import batch iteration failed: %v", ports.ErrQueryFailed, err)
	}
	return batches, nil
}

// DeleteBatch removes a batch by ID.
func (r *Repository) DeleteBatch(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM import_batches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete import batch %s: %v", ports.ErrDeleteFailed, id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get affected rows for batch %s: %v", ports.ErrDeleteFailed, id, err)
	}
	if rows == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// --- SettingsRepository Implementation ---

// GetSettings returns the stored settings, or zero-value settings when none
// have been saved yet.
func (r *Repository) GetSettings(ctx context.Context) (domain.Settings, error) {
	const query = `SELECT total_capital, default_charges, updated_at FROM settings WHERE id = 1`

	var settings domain.Settings
	err := r.db.QueryRowContext(ctx, query).Scan(
		&settings.TotalCapital, &settings.DefaultCharges, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("%w: failed to query settings: %v", ports.ErrQueryFailed, err)
	}
	return settings, nil
}

// SaveSettings persists the settings document.
func (r *Repository) SaveSettings(ctx context.Context, settings domain.Settings) error {
	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = time.Now().UTC()
	}
	const query = `
	INSERT INTO settings (id, total_capital, default_charges, updated_at)
	VALUES (1, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		total_capital = excluded.total_capital,
		default_charges = excluded.default_charges,
		updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query, settings.TotalCapital, settings.DefaultCharges, settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: failed to save settings: %v", ports.ErrUpdateFailed, err)
	}
	return nil
}
