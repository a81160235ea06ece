package ledger

import (
	"sort"
	"time"

	"tradejournal/internal/domain"
)

// Lot labels.
const (
	LotBase    = "BASE"
	LotPyramid = "PYRAMID"
)

// EntryLot is one entry of a trade (base or pyramid), flattened into the
// chronological entry ledger. It is derived per computation pass and never
// persisted.
type EntryLot struct {
	Label      string
	EntryDate  time.Time
	EntryPrice float64
	Qty        float64
	StopLoss   float64
}

// BuildEntryLots flattens a trade's base entry and pyramid adds into a single
// list ordered by entry date ascending. Ties keep input order (base first,
// then pyramids in array order). Dates are assumed valid; malformed dates
// must be rejected before the trade reaches this stage.
func BuildEntryLots(trade *domain.Trade) []EntryLot {
	lots := make([]EntryLot, 0, 1+len(trade.Pyramids))
	lots = append(lots, EntryLot{
		Label:      LotBase,
		EntryDate:  trade.EntryDate,
		EntryPrice: trade.EntryPrice,
		Qty:        trade.EntryQty,
		StopLoss:   trade.StopLoss,
	})
	for _, p := range trade.Pyramids {
		lots = append(lots, EntryLot{
			Label:      LotPyramid,
			EntryDate:  p.Date,
			EntryPrice: p.Price,
			Qty:        p.Qty,
			StopLoss:   p.StopLoss,
		})
	}
	sort.SliceStable(lots, func(i, j int) bool {
		return lots[i].EntryDate.Before(lots[j].EntryDate)
	})
	return lots
}

// WeightedAvgEntryPrice returns the quantity-weighted average entry price
// across all lots, or 0 when total quantity is zero.
func WeightedAvgEntryPrice(lots []EntryLot) float64 {
	var qty, notional float64
	for _, lot := range lots {
		qty += lot.Qty
		notional += lot.EntryPrice * lot.Qty
	}
	if qty == 0 {
		return 0
	}
	return notional / qty
}

// WeightedStopLossPercent returns the risk-weighted stop-loss distance as a
// percentage of entry notional, across all lots with valid prices. Used as
// the closed-trade risk view when no open quantity remains.
func WeightedStopLossPercent(lots []EntryLot) float64 {
	var notional, risk float64
	for _, lot := range lots {
		if lot.Qty <= 0 || lot.EntryPrice <= 0 || lot.StopLoss <= 0 {
			continue
		}
		notional += lot.EntryPrice * lot.Qty
		if lot.EntryPrice > lot.StopLoss {
			risk += (lot.EntryPrice - lot.StopLoss) * lot.Qty
		} else {
			risk += (lot.StopLoss - lot.EntryPrice) * lot.Qty
		}
	}
	if notional == 0 {
		return 0
	}
	return risk / notional * 100
}
