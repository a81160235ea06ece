package ledger

import (
	"math"
	"testing"
	"time"

	"tradejournal/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2024, time.January, n, 0, 0, 0, 0, time.UTC)
}

func TestMatchExitsFIFOOrder(t *testing.T) {
	entries := []EntryLot{
		{Label: LotBase, EntryDate: day(1), EntryPrice: 100, Qty: 10, StopLoss: 95},
		{Label: LotPyramid, EntryDate: day(2), EntryPrice: 110, Qty: 10, StopLoss: 105},
	}
	exits := []domain.ExitRecord{
		{ExitDate: day(3), ExitPrice: 120, ExitQty: 15},
	}

	result := MatchExits(entries, exits, domain.SideLong)

	// 10 @ (120-100) + 5 @ (120-110)
	if result.RealizedPnL != 250 {
		t.Errorf("Expected realized PnL 250, got %f", result.RealizedPnL)
	}
	if math.Abs(result.OpenQty-5) > EpsilonQty {
		t.Errorf("Expected open qty 5, got %f", result.OpenQty)
	}
	if math.Abs(result.AvgOpenEntryPrice-110) > 1e-6 {
		t.Errorf("Expected avg open entry price 110, got %f", result.AvgOpenEntryPrice)
	}
	if len(result.OpenLots) != 1 || math.Abs(result.OpenLots[0].Qty-5) > EpsilonQty {
		t.Errorf("Expected one open lot of qty 5, got %+v", result.OpenLots)
	}
	if len(result.ExitEvents) != 1 || result.ExitEvents[0].PnL != 250 {
		t.Errorf("Expected one exit event with PnL 250, got %+v", result.ExitEvents)
	}
}

func TestMatchExitsShortSideSignFlip(t *testing.T) {
	entries := []EntryLot{
		{EntryDate: day(1), EntryPrice: 100, Qty: 10},
		{EntryDate: day(2), EntryPrice: 110, Qty: 10},
	}
	exits := []domain.ExitRecord{
		{ExitDate: day(3), ExitPrice: 120, ExitQty: 15},
	}

	result := MatchExits(entries, exits, domain.SideShort)

	// 10 @ (100-120) + 5 @ (110-120)
	if result.RealizedPnL != -250 {
		t.Errorf("Expected realized PnL -250, got %f", result.RealizedPnL)
	}
}

func TestMatchExitsSortsExitsByDate(t *testing.T) {
	entries := []EntryLot{
		{EntryDate: day(1), EntryPrice: 100, Qty: 10},
		{EntryDate: day(2), EntryPrice: 110, Qty: 10},
	}
	// Later exit listed first; date order must win.
	exits := []domain.ExitRecord{
		{ExitDate: day(5), ExitPrice: 130, ExitQty: 10},
		{ExitDate: day(3), ExitPrice: 120, ExitQty: 10},
	}

	result := MatchExits(entries, exits, domain.SideLong)

	// day(3) exit consumes the 100 lot: 10*(120-100)=200
	// day(5) exit consumes the 110 lot: 10*(130-110)=200
	if len(result.ExitEvents) != 2 {
		t.Fatalf("Expected 2 exit events, got %d", len(result.ExitEvents))
	}
	if result.ExitEvents[0].PnL != 200 || result.ExitEvents[1].PnL != 200 {
		t.Errorf("Expected per-exit PnL 200/200, got %+v", result.ExitEvents)
	}
	if result.OpenQty > EpsilonQty {
		t.Errorf("Expected fully closed position, got open qty %f", result.OpenQty)
	}
}

func TestMatchExitsPartialLotConsumption(t *testing.T) {
	entries := []EntryLot{
		{EntryDate: day(1), EntryPrice: 50, Qty: 100, StopLoss: 45},
	}
	exits := []domain.ExitRecord{
		{ExitDate: day(2), ExitPrice: 55, ExitQty: 30},
		{ExitDate: day(4), ExitPrice: 60, ExitQty: 20},
	}

	result := MatchExits(entries, exits, domain.SideLong)

	if result.RealizedPnL != 30*5+20*10 {
		t.Errorf("Expected realized PnL 350, got %f", result.RealizedPnL)
	}
	if math.Abs(result.OpenQty-50) > EpsilonQty {
		t.Errorf("Expected open qty 50, got %f", result.OpenQty)
	}
	if len(result.OpenLots) != 1 || result.OpenLots[0].StopLoss != 45 {
		t.Errorf("Expected open lot to keep its stop loss, got %+v", result.OpenLots)
	}
}

func TestMatchExitsDoesNotMutateInput(t *testing.T) {
	entries := []EntryLot{{EntryDate: day(1), EntryPrice: 100, Qty: 10}}
	exits := []domain.ExitRecord{{ExitDate: day(2), ExitPrice: 110, ExitQty: 4}}

	MatchExits(entries, exits, domain.SideLong)

	if entries[0].Qty != 10 {
		t.Errorf("Expected input lots untouched, got qty %f", entries[0].Qty)
	}
}
