package importer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"tradejournal/internal/domain"
)

// OrderEvent is a deduplicated order-level event: every fill of the same
// broker order collapsed into one quantity with a volume-weighted price.
type OrderEvent struct {
	Symbol        string
	Side          domain.OrderSide
	ExecutionTime time.Time
	Qty           float64
	AvgPrice      float64
	ImportRef     string

	firstIndex int
}

// GroupEvents collapses normalized rows into order events for the given
// source. Zerodha rows group on the broker order id (trade id, then a
// same-timestamp key, as fallbacks); Dhan rows group on timestamp plus
// order type and exchange. Quantities sum; prices are quantity-weighted.
// Events are returned sorted by execution time, ties broken by first-seen
// input order. Rows with non-finite qty/price or a missing timestamp are
// dropped.
func GroupEvents(rows []NormalizedRow, source domain.ImportSource) []OrderEvent {
	type group struct {
		symbol        string
		side          domain.OrderSide
		executionTime time.Time
		firstIndex    int
		qty           float64
		gross         float64
		importRef     string
	}

	groups := make(map[string]*group)
	var order []string

	for _, row := range rows {
		if !isFinite(row.Qty) || !isFinite(row.Price) || row.ExecutionTime.IsZero() {
			continue
		}

		key := groupKey(row, source)
		g, ok := groups[key]
		if !ok {
			g = &group{
				symbol:        row.Symbol,
				side:          row.Side,
				executionTime: row.ExecutionTime,
				firstIndex:    row.Index,
				importRef:     importRef(row, source),
			}
			groups[key] = g
			order = append(order, key)
		}

		g.qty += row.Qty
		g.gross += row.Qty * row.Price
		if row.ExecutionTime.Before(g.executionTime) {
			g.executionTime = row.ExecutionTime
		}
		if row.Index < g.firstIndex {
			g.firstIndex = row.Index
		}
	}

	events := make([]OrderEvent, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		if g.qty <= 0 {
			continue
		}
		events = append(events, OrderEvent{
			Symbol:        g.symbol,
			Side:          g.side,
			ExecutionTime: g.executionTime,
			Qty:           g.qty,
			AvgPrice:      g.gross / g.qty,
			ImportRef:     g.importRef,
			firstIndex:    g.firstIndex,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].ExecutionTime.Equal(events[j].ExecutionTime) {
			return events[i].ExecutionTime.Before(events[j].ExecutionTime)
		}
		return events[i].firstIndex < events[j].firstIndex
	})
	return events
}

func groupKey(row NormalizedRow, source domain.ImportSource) string {
	if source == domain.SourceDhan {
		orderType := row.OrderType
		if orderType == "" {
			orderType = "NA"
		}
		exchange := row.Exchange
		if exchange == "" {
			exchange = "NA"
		}
		return fmt.Sprintf("%s__%s__%s__%s__%s",
			row.Symbol, row.Side, row.ExecutionTime.Format(time.RFC3339), orderType, exchange)
	}

	groupID := row.OrderID
	if groupID == "" {
		groupID = row.TradeID
	}
	if groupID == "" {
		// No broker identifier at all: fall back to a per-row key so
		// unrelated fills never merge.
		groupID = fmt.Sprintf("%s-%s-%s-%d",
			row.Symbol, row.Side, row.ExecutionTime.Format(time.RFC3339), row.Index)
	}
	return fmt.Sprintf("%s__%s__%s", row.Symbol, row.Side, groupID)
}

func importRef(row NormalizedRow, source domain.ImportSource) string {
	if source == domain.SourceDhan {
		return dhanImportRef(row)
	}
	return zerodhaImportRef(row)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
