package ledger

import (
	"sort"
	"time"

	"tradejournal/internal/domain"
)

// ExitEvent is the realized P&L of a single exit, used for equity-curve
// construction.
type ExitEvent struct {
	Date time.Time
	PnL  float64
}

// OpenLot is the still-open remainder of an entry lot after FIFO matching.
type OpenLot struct {
	Qty        float64
	EntryPrice float64
	StopLoss   float64
}

// FIFOResult is the outcome of matching a trade's exits against its entry
// ledger.
type FIFOResult struct {
	RealizedPnL       float64
	OpenQty           float64
	AvgOpenEntryPrice float64
	ExitEvents        []ExitEvent
	OpenLots          []OpenLot
}

// MatchExits consumes exits in exit-date order against entry lots, oldest
// lot first, and accumulates signed P&L per matched unit. Callers must have
// validated the quantity-conservation invariant (total exit qty never
// exceeds total entry qty); this function does not clamp.
func MatchExits(entries []EntryLot, exits []domain.ExitRecord, side domain.Side) FIFOResult {
	lots := make([]EntryLot, len(entries))
	copy(lots, entries)

	sorted := make([]domain.ExitRecord, len(exits))
	copy(sorted, exits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExitDate.Before(sorted[j].ExitDate)
	})

	result := FIFOResult{ExitEvents: make([]ExitEvent, 0, len(sorted))}

	for _, exit := range sorted {
		remaining := exit.ExitQty
		var exitPnL float64

		for i := range lots {
			if remaining <= EpsilonQty {
				break
			}
			if lots[i].Qty <= EpsilonQty {
				continue
			}
			matched := remaining
			if lots[i].Qty < matched {
				matched = lots[i].Qty
			}
			var pnl float64
			if side == domain.SideShort {
				pnl = matched * (lots[i].EntryPrice - exit.ExitPrice)
			} else {
				pnl = matched * (exit.ExitPrice - lots[i].EntryPrice)
			}
			exitPnL += pnl
			result.RealizedPnL += pnl
			lots[i].Qty -= matched
			remaining -= matched
		}

		result.ExitEvents = append(result.ExitEvents, ExitEvent{
			Date: exit.ExitDate,
			PnL:  Round(exitPnL, CurrencyPlaces),
		})
	}

	var openNotional float64
	for _, lot := range lots {
		if lot.Qty <= EpsilonQty {
			continue
		}
		result.OpenQty += lot.Qty
		openNotional += lot.Qty * lot.EntryPrice
		result.OpenLots = append(result.OpenLots, OpenLot{
			Qty:        lot.Qty,
			EntryPrice: lot.EntryPrice,
			StopLoss:   lot.StopLoss,
		})
	}
	if result.OpenQty > EpsilonQty {
		result.AvgOpenEntryPrice = openNotional / result.OpenQty
	}
	return result
}
