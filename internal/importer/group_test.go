package importer

import (
	"math"
	"testing"
	"time"

	"tradejournal/internal/domain"
)

func ts(hour, minute int) time.Time {
	return time.Date(2024, 3, 15, hour, minute, 0, 0, time.UTC)
}

func TestGroupEventsWeightedPrice(t *testing.T) {
	rows := []NormalizedRow{
		{Symbol: "RELIANCE", Side: domain.Buy, Qty: 5, Price: 100, ExecutionTime: ts(9, 30), OrderID: "ORD1", Index: 0},
		{Symbol: "RELIANCE", Side: domain.Buy, Qty: 5, Price: 110, ExecutionTime: ts(9, 31), OrderID: "ORD1", Index: 1},
	}
	events := GroupEvents(rows, domain.SourceZerodha)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Qty != 10 {
		t.Errorf("Qty = %v, want 10", e.Qty)
	}
	if math.Abs(e.AvgPrice-105) > 1e-9 {
		t.Errorf("AvgPrice = %v, want 105", e.AvgPrice)
	}
	if !e.ExecutionTime.Equal(ts(9, 30)) {
		t.Errorf("ExecutionTime = %v, want earliest fill time", e.ExecutionTime)
	}
	if e.ImportRef != "Order ORD1" {
		t.Errorf("ImportRef = %q, want %q", e.ImportRef, "Order ORD1")
	}
}

func TestGroupEventsSeparatesSides(t *testing.T) {
	rows := []NormalizedRow{
		{Symbol: "TCS", Side: domain.Buy, Qty: 10, Price: 100, ExecutionTime: ts(9, 30), OrderID: "ORD1", Index: 0},
		{Symbol: "TCS", Side: domain.Sell, Qty: 10, Price: 105, ExecutionTime: ts(9, 30), OrderID: "ORD1", Index: 1},
	}
	events := GroupEvents(rows, domain.SourceZerodha)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (BUY and SELL never merge)", len(events))
	}
}

func TestGroupEventsFallbackKeys(t *testing.T) {
	// No order id: trade id groups, then a per-row key.
	rows := []NormalizedRow{
		{Symbol: "INFY", Side: domain.Buy, Qty: 3, Price: 50, ExecutionTime: ts(10, 0), TradeID: "T1", Index: 0},
		{Symbol: "INFY", Side: domain.Buy, Qty: 2, Price: 60, ExecutionTime: ts(10, 1), TradeID: "T1", Index: 1},
		{Symbol: "INFY", Side: domain.Buy, Qty: 1, Price: 70, ExecutionTime: ts(10, 0), Index: 2},
		{Symbol: "INFY", Side: domain.Buy, Qty: 1, Price: 80, ExecutionTime: ts(10, 0), Index: 3},
	}
	events := GroupEvents(rows, domain.SourceZerodha)
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0].Qty != 5 || events[0].ImportRef != "Trade T1" {
		t.Errorf("trade-id group = %+v", events[0])
	}
}

func TestGroupEventsDhanKey(t *testing.T) {
	rows := []NormalizedRow{
		{Symbol: "SBIN", Side: domain.Buy, Qty: 4, Price: 500, ExecutionTime: ts(11, 0), OrderType: "CNC", Exchange: "NSE", Index: 0},
		{Symbol: "SBIN", Side: domain.Buy, Qty: 6, Price: 510, ExecutionTime: ts(11, 0), OrderType: "CNC", Exchange: "NSE", Index: 1},
		{Symbol: "SBIN", Side: domain.Buy, Qty: 5, Price: 505, ExecutionTime: ts(11, 0), OrderType: "MIS", Exchange: "NSE", Index: 2},
	}
	events := GroupEvents(rows, domain.SourceDhan)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (order type splits groups)", len(events))
	}
	if events[0].Qty != 10 {
		t.Errorf("Qty = %v, want 10", events[0].Qty)
	}
	if math.Abs(events[0].AvgPrice-506) > 1e-9 {
		t.Errorf("AvgPrice = %v, want 506", events[0].AvgPrice)
	}
	if events[0].ImportRef != "CNC NSE" {
		t.Errorf("ImportRef = %q, want %q", events[0].ImportRef, "CNC NSE")
	}
}

func TestGroupEventsOrdering(t *testing.T) {
	rows := []NormalizedRow{
		{Symbol: "A", Side: domain.Buy, Qty: 1, Price: 10, ExecutionTime: ts(12, 0), OrderID: "O2", Index: 0},
		{Symbol: "B", Side: domain.Buy, Qty: 1, Price: 10, ExecutionTime: ts(9, 0), OrderID: "O1", Index: 1},
		{Symbol: "C", Side: domain.Buy, Qty: 1, Price: 10, ExecutionTime: ts(9, 0), OrderID: "O3", Index: 2},
	}
	events := GroupEvents(rows, domain.SourceZerodha)
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	got := []string{events[0].Symbol, events[1].Symbol, events[2].Symbol}
	want := []string{"B", "C", "A"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestGroupEventsDropsInvalidRows(t *testing.T) {
	rows := []NormalizedRow{
		{Symbol: "A", Side: domain.Buy, Qty: math.NaN(), Price: 10, ExecutionTime: ts(9, 0), Index: 0},
		{Symbol: "A", Side: domain.Buy, Qty: 1, Price: math.Inf(1), ExecutionTime: ts(9, 0), Index: 1},
		{Symbol: "A", Side: domain.Buy, Qty: 1, Price: 10, Index: 2},
	}
	if events := GroupEvents(rows, domain.SourceZerodha); len(events) != 0 {
		t.Errorf("events = %d, want 0", len(events))
	}
}
