// Package app wires the journal's use cases: trade CRUD and sub-document
// mutations, tradebook imports, dashboard analytics and settings.
package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"tradejournal/internal/analytics"
	"tradejournal/internal/domain"
	"tradejournal/internal/importer"
	"tradejournal/internal/ledger"
	"tradejournal/internal/ports"
)

const (
	cacheKeyTrades    = "trades"
	cacheKeyDashboard = "dashboard"

	// maxPreviewRows caps the normalized rows stored on an import batch.
	maxPreviewRows = 5000
)

// ServiceConfig holds the dependencies for the journal service.
type ServiceConfig struct {
	Logger   ports.Logger
	Trades   ports.TradeRepository
	Batches  ports.ImportBatchRepository
	Settings ports.SettingsRepository
	// Quotes is optional; without it live prices are skipped.
	Quotes ports.QuoteProvider
	// Cache is optional; without it every read hits the repository.
	Cache    ports.Cache
	CacheTTL time.Duration
}

// Service implements the journal use cases on top of the ports.
type Service struct {
	logger   ports.Logger
	trades   ports.TradeRepository
	batches  ports.ImportBatchRepository
	settings ports.SettingsRepository
	quotes   ports.QuoteProvider
	cache    ports.Cache
	cacheTTL time.Duration
}

// New creates the journal service after validating required dependencies.
func New(cfg ServiceConfig) (*Service, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	if cfg.Trades == nil || cfg.Batches == nil || cfg.Settings == nil {
		return nil, fmt.Errorf("%w: repositories are required", ports.ErrConfigurationError)
	}
	return &Service{
		logger:   cfg.Logger,
		trades:   cfg.Trades,
		batches:  cfg.Batches,
		settings: cfg.Settings,
		quotes:   cfg.Quotes,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
	}, nil
}

// --- Trades ---

// ListTrades returns every trade with derived metrics, entry date descending.
// Results are served from the query cache when fresh.
func (s *Service) ListTrades(ctx context.Context) ([]analytics.TradeWithMetrics, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKeyTrades); ok {
			if trades, ok := cached.([]analytics.TradeWithMetrics); ok {
				return trades, nil
			}
		}
	}

	trades, err := s.trades.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	withMetrics := analytics.ComputeAll(ctx, trades, settings.TotalCapital)
	if s.cache != nil {
		s.cache.Set(cacheKeyTrades, withMetrics, s.cacheTTL)
	}
	return withMetrics, nil
}

// GetTrade returns one trade with derived metrics.
func (s *Service) GetTrade(ctx context.Context, id string) (*analytics.TradeWithMetrics, error) {
	trade, err := s.loadTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	return &analytics.TradeWithMetrics{
		Trade:   trade,
		Metrics: ledger.Compute(trade, settings.TotalCapital),
	}, nil
}

// CreateTrade validates and persists a new trade. A missing stop loss gets
// the 3% default for the trade's side.
func (s *Service) CreateTrade(ctx context.Context, trade *domain.Trade) (*domain.Trade, error) {
	if err := validateTradeInput(trade); err != nil {
		return nil, err
	}
	trade.StopLoss = domain.DefaultStopLoss(trade.EntryPrice, trade.Side, trade.StopLoss)
	assignSubDocumentIDs(trade)
	if err := validatePositionSize(trade); err != nil {
		return nil, err
	}

	if err := s.trades.Create(ctx, trade); err != nil {
		return nil, err
	}
	s.invalidate()
	s.logger.Info(ctx, "Trade created", map[string]interface{}{
		"id": trade.ID, "symbol": trade.Symbol, "side": trade.Side,
	})
	return trade, nil
}

// UpdateTrade replaces the mutable fields of an existing trade.
func (s *Service) UpdateTrade(ctx context.Context, id string, update *domain.Trade) (*domain.Trade, error) {
	trade, err := s.loadTrade(ctx, id)
	if err != nil {
		return nil, err
	}

	update.ID = trade.ID
	update.CreatedAt = trade.CreatedAt
	update.ImportBatchID = trade.ImportBatchID
	if err := validateTradeInput(update); err != nil {
		return nil, err
	}
	update.StopLoss = domain.DefaultStopLoss(update.EntryPrice, update.Side, update.StopLoss)
	assignSubDocumentIDs(update)
	if err := validatePositionSize(update); err != nil {
		return nil, err
	}

	if err := s.saveTrade(ctx, update); err != nil {
		return nil, err
	}
	return update, nil
}

// DeleteTrade removes a trade.
func (s *Service) DeleteTrade(ctx context.Context, id string) error {
	if err := s.trades.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	s.logger.Info(ctx, "Trade deleted", map[string]interface{}{"id": id})
	return nil
}

// --- Pyramids ---

// AddPyramid appends an entry lot to an open position.
func (s *Service) AddPyramid(ctx context.Context, tradeID string, pyramid domain.Pyramid) (*domain.Trade, error) {
	trade, err := s.loadTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if err := validatePyramid(pyramid); err != nil {
		return nil, err
	}
	pyramid.ID = uuid.NewString()
	trade.Pyramids = append(trade.Pyramids, pyramid)
	if err := s.saveTrade(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// UpdatePyramid replaces an existing pyramid in place.
func (s *Service) UpdatePyramid(ctx context.Context, tradeID, pyramidID string, pyramid domain.Pyramid) (*domain.Trade, error) {
	trade, err := s.loadTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	existing := trade.FindPyramid(pyramidID)
	if existing == nil {
		return nil, fmt.Errorf("%w: pyramid %s", ports.ErrNotFound, pyramidID)
	}
	if err := validatePyramid(pyramid); err != nil {
		return nil, err
	}
	pyramid.ID = pyramidID
	*existing = pyramid
	if err := validatePositionSize(trade); err != nil {
		return nil, err
	}
	if err := s.saveTrade(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// DeletePyramid removes a pyramid unless exits would then exceed entries.
func (s *Service) DeletePyramid(ctx context.Context, tradeID, pyramidID string) (*domain.Trade, error) {
	trade, err := s.loadTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range trade.Pyramids {
		if trade.Pyramids[i].ID == pyramidID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: pyramid %s", ports.ErrNotFound, pyramidID)
	}

	remaining := trade.TotalEntryQty() - trade.Pyramids[idx].Qty
	if trade.TotalExitQty() > remaining+ledger.EpsilonQty {
		return nil, ports.Validationf("Cannot delete pyramid: recorded exits would exceed the remaining entry quantity")
	}

	trade.Pyramids = append(trade.Pyramids[:idx], trade.Pyramids[idx+1:]...)
	if err := s.saveTrade(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// --- Exits ---

// AddExit records a full or partial exit.
func (s *Service) AddExit(ctx context.Context, tradeID string, exit domain.ExitRecord) (*domain.Trade, error) {
	trade, err := s.loadTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if err := validateExit(trade, exit, ""); err != nil {
		return nil, err
	}
	exit.ID = uuid.NewString()
	trade.Exits = append(trade.Exits, exit)
	if err := s.saveTrade(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// UpdateExit replaces an existing exit in place.
func (s *Service) UpdateExit(ctx context.Context, tradeID, exitID string, exit domain.ExitRecord) (*domain.Trade, error) {
	trade, err := s.loadTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	existing := trade.FindExit(exitID)
	if existing == nil {
		return nil, fmt.Errorf("%w: exit %s", ports.ErrNotFound, exitID)
	}
	if err := validateExit(trade, exit, exitID); err != nil {
		return nil, err
	}
	exit.ID = exitID
	*existing = exit
	if err := s.saveTrade(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// DeleteExit removes an exit record.
func (s *Service) DeleteExit(ctx context.Context, tradeID, exitID string) (*domain.Trade, error) {
	trade, err := s.loadTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range trade.Exits {
		if trade.Exits[i].ID == exitID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: exit %s", ports.ErrNotFound, exitID)
	}
	trade.Exits = append(trade.Exits[:idx], trade.Exits[idx+1:]...)
	if err := s.saveTrade(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// --- Stop-loss adjustments ---

// AddStopLossAdjustment records a quantity-scoped stop revision on an open
// trade.
func (s *Service) AddStopLossAdjustment(ctx context.Context, tradeID string, adj domain.StopLossAdjustment) (*domain.Trade, error) {
	trade, err := s.loadTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if adj.Qty <= 0 {
		return nil, ports.Validationf("Adjustment quantity must be positive")
	}
	if adj.StopLoss <= 0 {
		return nil, ports.Validationf("Adjustment stop loss must be positive")
	}
	if adj.Date.IsZero() {
		return nil, ports.Validationf("Adjustment date is required")
	}
	openQty := trade.OpenQty()
	if openQty <= ledger.EpsilonQty {
		return nil, ports.Validationf("Stop loss can only be adjusted on an open trade")
	}
	if adj.Qty > openQty+ledger.EpsilonQty {
		return nil, ports.Validationf("Adjustment quantity %.6g exceeds the open quantity %.6g", adj.Qty, openQty)
	}

	adj.ID = uuid.NewString()
	trade.StopLossAdjustments = append(trade.StopLossAdjustments, adj)
	if err := s.saveTrade(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// DeleteStopLossAdjustment removes an adjustment record.
func (s *Service) DeleteStopLossAdjustment(ctx context.Context, tradeID, adjustmentID string) (*domain.Trade, error) {
	trade, err := s.loadTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range trade.StopLossAdjustments {
		if trade.StopLossAdjustments[i].ID == adjustmentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: stop-loss adjustment %s", ports.ErrNotFound, adjustmentID)
	}
	trade.StopLossAdjustments = append(trade.StopLossAdjustments[:idx], trade.StopLossAdjustments[idx+1:]...)
	if err := s.saveTrade(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// --- Quotes ---

// GetTradeQuote fetches the live last price for a trade's symbol and stores
// it on the trade.
func (s *Service) GetTradeQuote(ctx context.Context, tradeID string) (float64, error) {
	if s.quotes == nil {
		return 0, ports.ErrQuoteUnavailable
	}
	trade, err := s.loadTrade(ctx, tradeID)
	if err != nil {
		return 0, err
	}
	price, err := s.quotes.LastPrice(ctx, trade.Symbol)
	if err != nil {
		return 0, err
	}
	trade.LastPrice = &price
	if err := s.saveTrade(ctx, trade); err != nil {
		return 0, err
	}
	return price, nil
}

// --- Imports ---

// ImportResult summarizes one tradebook import run.
type ImportResult struct {
	Batch                   *domain.ImportBatch `json:"batch"`
	NewTradesCount          int                 `json:"newTradesCount"`
	UpdatedTradesCount      int                 `json:"updatedTradesCount"`
	SkippedUnmatchedSellQty float64             `json:"skippedUnmatchedSellQty,omitempty"`
}

// ImportTradebook parses a raw broker tradebook, reconciles it against open
// positions and persists the resulting trades under a new import batch.
func (s *Service) ImportTradebook(ctx context.Context, source domain.ImportSource, csvText, fileName string) (*ImportResult, error) {
	rows := importer.ParseDelimited(csvText)

	var (
		normalized []importer.NormalizedRow
		err        error
	)
	switch source {
	case domain.SourceZerodha:
		normalized, err = importer.ParseZerodha(rows)
	case domain.SourceDhan:
		normalized, err = importer.ParseDhan(rows)
	default:
		return nil, ports.Validationf("Unsupported import source %q", source)
	}
	if err != nil {
		return nil, err
	}

	events := importer.GroupEvents(normalized, source)
	if len(events) == 0 {
		return nil, ports.Validationf("No valid order events found in the tradebook")
	}

	symbolSet := make(map[string]struct{})
	var symbols []string
	for _, event := range events {
		if _, ok := symbolSet[event.Symbol]; !ok {
			symbolSet[event.Symbol] = struct{}{}
			symbols = append(symbols, event.Symbol)
		}
	}
	existing, err := s.trades.FindBySymbols(ctx, symbols)
	if err != nil {
		return nil, err
	}

	res := importer.Reconcile(events, existing, importer.Options{
		Source: source,
		// Dhan delivery tradebooks cannot represent short positions.
		AllowShort: source != domain.SourceDhan,
	})

	batch := &domain.ImportBatch{
		Source:        source,
		FileName:      fileName,
		ImportedCount: len(res.NewTrades),
		PreviewRows:   previewRows(normalized),
	}
	if err := s.batches.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}

	for _, trade := range res.NewTrades {
		trade.ImportBatchID = batch.ID
		assignSubDocumentIDs(trade)
	}
	if err := s.trades.CreateMany(ctx, res.NewTrades); err != nil {
		return nil, err
	}
	for _, trade := range res.MutatedExisting {
		assignSubDocumentIDs(trade)
		trade.UpdatedAt = time.Now().UTC()
		if err := s.trades.Update(ctx, trade); err != nil {
			return nil, err
		}
	}
	s.invalidate()

	s.logger.Info(ctx, "Tradebook imported", map[string]interface{}{
		"batchId": batch.ID, "source": source, "newTrades": len(res.NewTrades),
		"updatedTrades": len(res.MutatedExisting), "skippedSellQty": res.SkippedUnmatchedSellQty,
	})
	return &ImportResult{
		Batch:                   batch,
		NewTradesCount:          len(res.NewTrades),
		UpdatedTradesCount:      len(res.MutatedExisting),
		SkippedUnmatchedSellQty: res.SkippedUnmatchedSellQty,
	}, nil
}

// ListImports returns every import batch, newest first, with per-batch trade
// counts.
func (s *Service) ListImports(ctx context.Context) ([]*domain.ImportBatch, error) {
	batches, err := s.batches.FindAllBatches(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.trades.CountByImportBatch(ctx)
	if err != nil {
		return nil, err
	}
	for _, batch := range batches {
		batch.TradesCount = counts[batch.ID]
	}
	return batches, nil
}

// GetImport returns one batch with its stored preview rows.
func (s *Service) GetImport(ctx context.Context, id string) (*domain.ImportBatch, error) {
	batch, err := s.batches.FindBatchByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, fmt.Errorf("%w: import batch %s", ports.ErrNotFound, id)
	}
	counts, err := s.trades.CountByImportBatch(ctx)
	if err != nil {
		return nil, err
	}
	batch.TradesCount = counts[batch.ID]
	return batch, nil
}

// DeleteImport removes a batch and cascades to its trades.
func (s *Service) DeleteImport(ctx context.Context, id string) (int, error) {
	batch, err := s.batches.FindBatchByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if batch == nil {
		return 0, fmt.Errorf("%w: import batch %s", ports.ErrNotFound, id)
	}
	deleted, err := s.trades.DeleteByImportBatch(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := s.batches.DeleteBatch(ctx, id); err != nil {
		return 0, err
	}
	s.invalidate()
	s.logger.Info(ctx, "Import batch deleted", map[string]interface{}{
		"batchId": id, "deletedTrades": deleted,
	})
	return deleted, nil
}

// --- Dashboard ---

// GetDashboard builds the full analytics payload. Live quotes for open
// symbols are refreshed best-effort first; a quote failure never fails the
// dashboard.
func (s *Service) GetDashboard(ctx context.Context) (*analytics.Dashboard, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKeyDashboard); ok {
			if dash, ok := cached.(*analytics.Dashboard); ok {
				return dash, nil
			}
		}
	}

	trades, err := s.trades.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	s.refreshOpenQuotes(ctx, trades)

	withMetrics := analytics.ComputeAll(ctx, trades, settings.TotalCapital)
	dash := analytics.BuildDashboard(withMetrics)
	if s.cache != nil {
		s.cache.Set(cacheKeyDashboard, dash, s.cacheTTL)
	}
	return dash, nil
}

// refreshOpenQuotes sets LastPrice on open trades from the quote provider for
// the duration of the computation; nothing is persisted on the read path.
// One quote per symbol; failures are logged and skipped.
func (s *Service) refreshOpenQuotes(ctx context.Context, trades []*domain.Trade) {
	if s.quotes == nil {
		return
	}
	prices := make(map[string]float64)
	for _, trade := range trades {
		if trade.OpenQty() <= ledger.EpsilonQty {
			continue
		}
		price, ok := prices[trade.Symbol]
		if !ok {
			var err error
			price, err = s.quotes.LastPrice(ctx, trade.Symbol)
			if err != nil {
				s.logger.Warn(ctx, "Quote refresh skipped", map[string]interface{}{
					"symbol": trade.Symbol, "error": err.Error(),
				})
				prices[trade.Symbol] = 0
				continue
			}
			prices[trade.Symbol] = price
		}
		if price <= 0 {
			continue
		}
		p := price
		trade.LastPrice = &p
	}
}

// --- Settings ---

// GetSettings returns the account settings.
func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	return s.settings.GetSettings(ctx)
}

// SaveSettings normalizes and persists the account settings.
func (s *Service) SaveSettings(ctx context.Context, raw domain.RawSettings) (domain.Settings, error) {
	settings := domain.NormalizeSettings(raw)
	settings.UpdatedAt = time.Now().UTC()
	if err := s.settings.SaveSettings(ctx, settings); err != nil {
		return domain.Settings{}, err
	}
	s.invalidate()
	return settings, nil
}

// --- Helpers ---

func (s *Service) loadTrade(ctx context.Context, id string) (*domain.Trade, error) {
	trade, err := s.trades.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, fmt.Errorf("%w: trade %s", ports.ErrNotFound, id)
	}
	return trade, nil
}

func (s *Service) saveTrade(ctx context.Context, trade *domain.Trade) error {
	trade.UpdatedAt = time.Now().UTC()
	if err := s.trades.Update(ctx, trade); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate(cacheKeyTrades, cacheKeyDashboard)
	}
}

func validateTradeInput(trade *domain.Trade) error {
	if trade.Symbol == "" {
		return ports.Validationf("Symbol is required")
	}
	if trade.Side != domain.SideLong && trade.Side != domain.SideShort {
		return ports.Validationf("Side must be LONG or SHORT")
	}
	if trade.EntryDate.IsZero() {
		return ports.Validationf("Entry date is required")
	}
	if trade.EntryPrice <= 0 {
		return ports.Validationf("Entry price must be positive")
	}
	if trade.EntryQty <= 0 {
		return ports.Validationf("Entry quantity must be positive")
	}
	for _, p := range trade.Pyramids {
		if err := validatePyramid(p); err != nil {
			return err
		}
	}
	for _, e := range trade.Exits {
		if e.ExitQty <= 0 || e.ExitPrice <= 0 || e.ExitDate.IsZero() {
			return ports.Validationf("Exits need a positive quantity and price and a valid date")
		}
	}
	return nil
}

func validatePyramid(p domain.Pyramid) error {
	if p.Qty <= 0 || p.Price <= 0 || p.Date.IsZero() {
		return ports.Validationf("Pyramids need a positive quantity and price and a valid date")
	}
	return nil
}

// validatePositionSize rejects a trade whose exits exceed its entries.
func validatePositionSize(trade *domain.Trade) error {
	if trade.TotalExitQty() > trade.TotalEntryQty()+ledger.EpsilonQty {
		return ports.Validationf("Total exit quantity %.6g exceeds total entry quantity %.6g",
			trade.TotalExitQty(), trade.TotalEntryQty())
	}
	return nil
}

// validateExit checks one new or updated exit against the trade's entries,
// excluding the exit being replaced from the running total.
func validateExit(trade *domain.Trade, exit domain.ExitRecord, excludeExitID string) error {
	if exit.ExitQty <= 0 {
		return ports.Validationf("Exit quantity must be positive")
	}
	if exit.ExitPrice <= 0 {
		return ports.Validationf("Exit price must be positive")
	}
	if exit.ExitDate.IsZero() {
		return ports.Validationf("Exit date is required")
	}
	var existingExitQty float64
	for _, e := range trade.Exits {
		if excludeExitID != "" && e.ID == excludeExitID {
			continue
		}
		existingExitQty += e.ExitQty
	}
	if existingExitQty+exit.ExitQty > trade.TotalEntryQty()+ledger.EpsilonQty {
		return ports.Validationf("Exit quantity %.6g exceeds the remaining open quantity %.6g",
			exit.ExitQty, trade.TotalEntryQty()-existingExitQty)
	}
	return nil
}

// assignSubDocumentIDs gives every pyramid, exit and adjustment without an ID
// a fresh one.
func assignSubDocumentIDs(trade *domain.Trade) {
	for i := range trade.Pyramids {
		if trade.Pyramids[i].ID == "" {
			trade.Pyramids[i].ID = uuid.NewString()
		}
	}
	for i := range trade.Exits {
		if trade.Exits[i].ID == "" {
			trade.Exits[i].ID = uuid.NewString()
		}
	}
	for i := range trade.StopLossAdjustments {
		if trade.StopLossAdjustments[i].ID == "" {
			trade.StopLossAdjustments[i].ID = uuid.NewString()
		}
	}
}

// previewRows converts normalized rows into the capped audit preview stored
// on the batch.
func previewRows(rows []importer.NormalizedRow) []domain.PreviewRow {
	if len(rows) > maxPreviewRows {
		rows = rows[:maxPreviewRows]
	}
	preview := make([]domain.PreviewRow, 0, len(rows))
	for _, row := range rows {
		preview = append(preview, domain.PreviewRow{
			Symbol:   row.Symbol,
			Side:     string(row.Side),
			DateText: row.ExecutionTime.UTC().Format("2006-01-02 15:04:05"),
			Qty:      strconv.FormatFloat(row.Qty, 'f', -1, 64),
			Price:    strconv.FormatFloat(row.Price, 'f', -1, 64),
			Status:   row.Status,
		})
	}
	return preview
}
