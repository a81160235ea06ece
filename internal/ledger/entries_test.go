package ledger

import (
	"math"
	"testing"

	"tradejournal/internal/domain"
)

func TestBuildEntryLotsSortsByDate(t *testing.T) {
	trade := &domain.Trade{
		Side:       domain.SideLong,
		EntryDate:  day(5),
		EntryPrice: 100,
		EntryQty:   10,
		StopLoss:   95,
		Pyramids: []domain.Pyramid{
			{Date: day(2), Price: 90, Qty: 5, StopLoss: 85},
			{Date: day(8), Price: 110, Qty: 5, StopLoss: 105},
		},
	}

	lots := BuildEntryLots(trade)

	if len(lots) != 3 {
		t.Fatalf("Expected 3 lots, got %d", len(lots))
	}
	if lots[0].Label != LotPyramid || lots[0].EntryPrice != 90 {
		t.Errorf("Expected earliest pyramid first, got %+v", lots[0])
	}
	if lots[1].Label != LotBase {
		t.Errorf("Expected base lot second, got %+v", lots[1])
	}
	if lots[2].EntryPrice != 110 {
		t.Errorf("Expected latest pyramid last, got %+v", lots[2])
	}
}

func TestBuildEntryLotsTieKeepsInputOrder(t *testing.T) {
	trade := &domain.Trade{
		EntryDate:  day(1),
		EntryPrice: 100,
		EntryQty:   10,
		Pyramids: []domain.Pyramid{
			{Date: day(1), Price: 101, Qty: 5},
			{Date: day(1), Price: 102, Qty: 5},
		},
	}

	lots := BuildEntryLots(trade)

	if lots[0].EntryPrice != 100 || lots[1].EntryPrice != 101 || lots[2].EntryPrice != 102 {
		t.Errorf("Expected stable order on equal dates, got %+v", lots)
	}
}

func TestWeightedAvgEntryPrice(t *testing.T) {
	lots := []EntryLot{
		{EntryPrice: 100, Qty: 10},
		{EntryPrice: 110, Qty: 5},
	}
	expected := (100*10 + 110*5) / 15.0
	if got := WeightedAvgEntryPrice(lots); math.Abs(got-expected) > 1e-9 {
		t.Errorf("Expected %f, got %f", expected, got)
	}
	if got := WeightedAvgEntryPrice(nil); got != 0 {
		t.Errorf("Expected 0 for empty lots, got %f", got)
	}
}

func TestWeightedStopLossPercent(t *testing.T) {
	lots := []EntryLot{
		{EntryPrice: 100, Qty: 10, StopLoss: 95},
	}
	if got := WeightedStopLossPercent(lots); math.Abs(got-5) > 1e-9 {
		t.Errorf("Expected 5%%, got %f", got)
	}

	// Lots with missing stop loss are skipped, not counted as zero risk.
	lots = append(lots, EntryLot{EntryPrice: 110, Qty: 10, StopLoss: 0})
	if got := WeightedStopLossPercent(lots); math.Abs(got-5) > 1e-9 {
		t.Errorf("Expected invalid lot skipped, got %f", got)
	}
}
