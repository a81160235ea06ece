package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/domain"
	"tradejournal/internal/ports"
)

// mockLogger keeps test output quiet.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTrade(symbol string, entryDate time.Time) *domain.Trade {
	return &domain.Trade{
		Symbol:     symbol,
		Side:       domain.SideLong,
		EntryDate:  entryDate,
		EntryPrice: 100,
		EntryQty:   10,
		StopLoss:   97,
		Pyramids: []domain.Pyramid{
			{ID: "p1", Date: entryDate.Add(24 * time.Hour), Price: 105, Qty: 5, StopLoss: 100},
		},
		Exits: []domain.ExitRecord{
			{ID: "e1", ExitDate: entryDate.Add(48 * time.Hour), ExitPrice: 110, ExitQty: 4, Notes: "partial"},
		},
		StopLossAdjustments: []domain.StopLossAdjustment{
			{ID: "a1", Date: entryDate.Add(24 * time.Hour), Qty: 6, StopLoss: 102},
		},
		Charges:  12.5,
		Strategy: "Breakout",
		Tags:     []string{"swing"},
	}
}

func TestCreateAndFindByID(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	trade := sampleTrade("RELIANCE", time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, trade))
	assert.NotEmpty(t, trade.ID)
	assert.False(t, trade.CreatedAt.IsZero())

	found, err := repo.FindByID(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, trade.Symbol, found.Symbol)
	assert.Equal(t, domain.SideLong, found.Side)
	assert.Equal(t, trade.EntryQty, found.EntryQty)
	require.Len(t, found.Pyramids, 1)
	assert.Equal(t, "p1", found.Pyramids[0].ID)
	require.Len(t, found.Exits, 1)
	assert.Equal(t, "partial", found.Exits[0].Notes)
	require.Len(t, found.StopLossAdjustments, 1)
	assert.Equal(t, 102.0, found.StopLossAdjustments[0].StopLoss)
	assert.Equal(t, []string{"swing"}, found.Tags)
	assert.Nil(t, found.LastPrice)
}

func TestFindByIDNotFound(t *testing.T) {
	repo := setupTestDB(t)

	found, err := repo.FindByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestUpdate(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	trade := sampleTrade("TCS", time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, trade))

	lp := 112.5
	trade.LastPrice = &lp
	trade.Notes = "updated"
	trade.Exits = append(trade.Exits, domain.ExitRecord{
		ID: "e2", ExitDate: trade.EntryDate.Add(72 * time.Hour), ExitPrice: 115, ExitQty: 3,
	})
	require.NoError(t, repo.Update(ctx, trade))

	found, err := repo.FindByID(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "updated", found.Notes)
	require.NotNil(t, found.LastPrice)
	assert.Equal(t, 112.5, *found.LastPrice)
	assert.Len(t, found.Exits, 2)
}

func TestUpdateNotFound(t *testing.T) {
	repo := setupTestDB(t)

	trade := sampleTrade("X", time.Now().UTC())
	trade.ID = "missing"
	err := repo.Update(context.Background(), trade)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	trade := sampleTrade("INFY", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, trade))
	require.NoError(t, repo.Delete(ctx, trade.ID))

	found, err := repo.FindByID(ctx, trade.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	assert.ErrorIs(t, repo.Delete(ctx, trade.ID), ports.ErrNotFound)
}

func TestFindAllOrdersByEntryDateDesc(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	older := sampleTrade("A", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	newer := sampleTrade("B", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	trades, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "B", trades[0].Symbol)
	assert.Equal(t, "A", trades[1].Symbol)
}

func TestFindBySymbolsOrdersAscending(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	newer := sampleTrade("RELIANCE", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	older := sampleTrade("RELIANCE", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	other := sampleTrade("TCS", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, other))

	trades, err := repo.FindBySymbols(ctx, []string{"RELIANCE"})
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.True(t, trades[0].EntryDate.Before(trades[1].EntryDate))

	trades, err = repo.FindBySymbols(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestCreateManyAndBatchCascade(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	batch := &domain.ImportBatch{
		Source:        domain.SourceZerodha,
		FileName:      "tradebook.csv",
		ImportedCount: 2,
		PreviewRows: []domain.PreviewRow{
			{Symbol: "RELIANCE", Side: "BUY", DateText: "15/03/2024", Qty: "10", Price: "100"},
		},
	}
	require.NoError(t, repo.CreateBatch(ctx, batch))
	require.NotEmpty(t, batch.ID)

	t1 := sampleTrade("RELIANCE", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	t1.ImportBatchID = batch.ID
	t2 := sampleTrade("TCS", time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC))
	t2.ImportBatchID = batch.ID
	require.NoError(t, repo.CreateMany(ctx, []*domain.Trade{t1, t2}))

	counts, err := repo.CountByImportBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[batch.ID])

	deleted, err := repo.DeleteByImportBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	trades, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestImportBatchRoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	batch := &domain.ImportBatch{
		Source:        domain.SourceDhan,
		FileName:      "dhan.csv",
		ImportedCount: 3,
		PreviewRows: []domain.PreviewRow{
			{Symbol: "SBIN", Side: "BUY", DateText: "15/03/2024", Qty: "10", Price: "500", Status: "TRADED"},
		},
	}
	require.NoError(t, repo.CreateBatch(ctx, batch))

	found, err := repo.FindBatchByID(ctx, batch.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.SourceDhan, found.Source)
	require.Len(t, found.PreviewRows, 1)
	assert.Equal(t, "SBIN", found.PreviewRows[0].Symbol)

	all, err := repo.FindAllBatches(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Empty(t, all[0].PreviewRows)

	require.NoError(t, repo.DeleteBatch(ctx, batch.ID))
	assert.ErrorIs(t, repo.DeleteBatch(ctx, batch.ID), ports.ErrNotFound)

	missing, err := repo.FindBatchByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSettingsRoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	settings, err := repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Zero(t, settings.TotalCapital)

	require.NoError(t, repo.SaveSettings(ctx, domain.Settings{TotalCapital: 500000, DefaultCharges: 40}))
	require.NoError(t, repo.SaveSettings(ctx, domain.Settings{TotalCapital: 600000, DefaultCharges: 45}))

	settings, err = repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 600000.0, settings.TotalCapital)
	assert.Equal(t, 45.0, settings.DefaultCharges)
}
