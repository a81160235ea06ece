package ledger

import (
	"sort"
	"time"

	"tradejournal/internal/domain"
)

// riskSegment is a slice of open quantity priced against one entry price and
// one (possibly adjusted) stop loss.
type riskSegment struct {
	qty        float64
	entryPrice float64
	stopLoss   float64
	adjusted   bool
	adjustedAt time.Time
}

// CapitalAtRisk applies the trade's stop-loss adjustments onto the open lots
// and returns the total loss if every remaining segment were stopped out.
//
// Adjustments are applied in chronological order. Each adjustment consumes
// open quantity from already-adjusted segments first, most recently adjusted
// first, and only then from unadjusted lots. Traders ratchet stops on the
// risk they most recently touched, and the consumption order decides which
// entry price an adjusted quantity is priced against.
func CapitalAtRisk(openLots []OpenLot, adjustments []domain.StopLossAdjustment) float64 {
	if len(openLots) == 0 {
		return 0
	}

	segments := make([]*riskSegment, 0, len(openLots))
	for _, lot := range openLots {
		segments = append(segments, &riskSegment{
			qty:        lot.Qty,
			entryPrice: lot.EntryPrice,
			stopLoss:   lot.StopLoss,
		})
	}

	sorted := make([]domain.StopLossAdjustment, len(adjustments))
	copy(sorted, adjustments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for _, adj := range sorted {
		remaining := adj.Qty
		if remaining <= EpsilonQty || adj.StopLoss <= 0 {
			continue
		}

		var adjusted, unadjusted []*riskSegment
		for _, seg := range segments {
			if seg.qty <= EpsilonQty {
				continue
			}
			if seg.adjusted {
				adjusted = append(adjusted, seg)
			} else {
				unadjusted = append(unadjusted, seg)
			}
		}
		sort.SliceStable(adjusted, func(i, j int) bool {
			return adjusted[i].adjustedAt.After(adjusted[j].adjustedAt)
		})

		for _, pool := range [][]*riskSegment{adjusted, unadjusted} {
			for _, seg := range pool {
				if remaining <= EpsilonQty {
					break
				}
				if seg.qty <= EpsilonQty {
					continue
				}
				matched := remaining
				if seg.qty < matched {
					matched = seg.qty
				}
				seg.qty -= matched
				remaining -= matched
				segments = append(segments, &riskSegment{
					qty:        matched,
					entryPrice: seg.entryPrice,
					stopLoss:   adj.StopLoss,
					adjusted:   true,
					adjustedAt: adj.Date,
				})
			}
			if remaining <= EpsilonQty {
				break
			}
		}

		live := segments[:0]
		for _, seg := range segments {
			if seg.qty > EpsilonQty {
				live = append(live, seg)
			}
		}
		segments = live
	}

	var total float64
	for _, seg := range segments {
		if seg.qty <= EpsilonQty {
			continue
		}
		dist := seg.entryPrice - seg.stopLoss
		if dist < 0 {
			dist = -dist
		}
		total += dist * seg.qty
	}
	return total
}
