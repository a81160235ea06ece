package importer

import (
	"fmt"

	"tradejournal/internal/domain"
	"tradejournal/internal/ledger"
)

// Options controls a reconciliation run.
type Options struct {
	// Source picks the exit-note/strategy labels and the grouping rules
	// the events came from.
	Source domain.ImportSource
	// AllowShort decides whether leftover SELL quantity opens a synthetic
	// short. When false the quantity is counted as skipped instead; some
	// tradebook formats (Dhan delivery) cannot represent shorts.
	AllowShort bool
}

// Result is the outcome of replaying order events against open-position
// state.
type Result struct {
	// NewTrades are synthesized trade payloads, entry date ascending.
	NewTrades []*domain.Trade
	// MutatedExisting are pre-existing trades that received imported
	// exits and must be re-saved, in first-touched order.
	MutatedExisting []*domain.Trade
	// SkippedUnmatchedSellQty counts SELL quantity that matched no open
	// long when shorts are disallowed.
	SkippedUnmatchedSellQty float64
}

// queueEntry is one open FIFO slot for a symbol: either a pre-existing trade
// or a payload synthesized earlier in this run.
type queueEntry struct {
	remainingQty float64
	existing     *domain.Trade
	payload      *domain.Trade
}

type symbolState struct {
	long  []*queueEntry
	short []*queueEntry
}

// Reconcile replays order events in time order against per-symbol FIFO
// queues seeded from existingOpenTrades. BUY events close open shorts first
// (oldest first), the remainder opens or extends a long; SELL events mirror
// that. Exits land on the existing trade when the lot pre-dates this run,
// otherwise on the in-run payload. The inputs are never retained; existing
// trades are only mutated by appending exit records.
func Reconcile(events []OrderEvent, existingOpenTrades []*domain.Trade, opts Options) *Result {
	result := &Result{}
	state := seedState(existingOpenTrades)
	touched := make(map[*domain.Trade]bool)
	label := sourceLabel(opts.Source)

	for _, event := range events {
		st, ok := state[event.Symbol]
		if !ok {
			st = &symbolState{}
			state[event.Symbol] = st
		}

		var closeQueue *[]*queueEntry
		if event.Side == domain.Buy {
			closeQueue = &st.short
		} else {
			closeQueue = &st.long
		}

		remaining := event.Qty
		for remaining > ledger.EpsilonQty && len(*closeQueue) > 0 {
			entry := (*closeQueue)[0]
			closeQty := remaining
			if entry.remainingQty < closeQty {
				closeQty = entry.remainingQty
			}
			exit := domain.ExitRecord{
				ExitDate:  event.ExecutionTime,
				ExitPrice: event.AvgPrice,
				ExitQty:   closeQty,
				Notes:     fmt.Sprintf("Imported from %s (%s)", label, event.ImportRef),
			}
			if entry.existing != nil {
				entry.existing.Exits = append(entry.existing.Exits, exit)
				if !touched[entry.existing] {
					touched[entry.existing] = true
					result.MutatedExisting = append(result.MutatedExisting, entry.existing)
				}
			} else {
				entry.payload.Exits = append(entry.payload.Exits, exit)
			}
			entry.remainingQty -= closeQty
			remaining -= closeQty
			if entry.remainingQty <= ledger.EpsilonQty {
				*closeQueue = (*closeQueue)[1:]
			}
		}

		if remaining <= ledger.EpsilonQty {
			continue
		}

		if event.Side == domain.Sell && !opts.AllowShort {
			result.SkippedUnmatchedSellQty += remaining
			continue
		}

		side := domain.SideLong
		if event.Side == domain.Sell {
			side = domain.SideShort
		}
		payload := &domain.Trade{
			Symbol:     event.Symbol,
			Side:       side,
			EntryDate:  event.ExecutionTime,
			EntryPrice: event.AvgPrice,
			EntryQty:   remaining,
			StopLoss:   domain.DefaultStopLoss(event.AvgPrice, side, 0),
			Pyramids:   []domain.Pyramid{},
			Exits:      []domain.ExitRecord{},
			Strategy:   label + " Import",
			Notes:      fmt.Sprintf("Auto-imported from %s trade log (%s)", label, event.ImportRef),
			Tags:       []string{sourceTag(opts.Source)},
		}
		result.NewTrades = append(result.NewTrades, payload)
		entry := &queueEntry{remainingQty: remaining, payload: payload}
		if side == domain.SideShort {
			st.short = append(st.short, entry)
		} else {
			st.long = append(st.long, entry)
		}
	}

	return result
}

// seedState builds per-symbol FIFO queues from already-open trades. Callers
// supply trades ordered by entry date ascending so older positions close
// first.
func seedState(existing []*domain.Trade) map[string]*symbolState {
	state := make(map[string]*symbolState)
	for _, trade := range existing {
		remaining := trade.OpenQty()
		if remaining <= ledger.EpsilonQty {
			continue
		}
		st, ok := state[trade.Symbol]
		if !ok {
			st = &symbolState{}
			state[trade.Symbol] = st
		}
		entry := &queueEntry{remainingQty: remaining, existing: trade}
		if trade.Side == domain.SideShort {
			st.short = append(st.short, entry)
		} else {
			st.long = append(st.long, entry)
		}
	}
	return state
}

func sourceLabel(source domain.ImportSource) string {
	switch source {
	case domain.SourceDhan:
		return "Dhan"
	default:
		return "Zerodha"
	}
}

func sourceTag(source domain.ImportSource) string {
	switch source {
	case domain.SourceDhan:
		return "dhan-import"
	default:
		return "zerodha-import"
	}
}
