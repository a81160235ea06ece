// Package analytics builds cross-trade dashboard aggregates from per-trade
// metrics: equity curve, drawdown, monthly P&L buckets and summary stats.
package analytics

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"tradejournal/internal/domain"
	"tradejournal/internal/ledger"
)

// TradeWithMetrics pairs a trade with its computed metrics.
type TradeWithMetrics struct {
	Trade   *domain.Trade  `json:"trade"`
	Metrics ledger.Metrics `json:"metrics"`
}

// EquityPoint is one point of the cumulative realized P&L curve.
type EquityPoint struct {
	Date   string  `json:"date"`
	Equity float64 `json:"equity"`
}

// MonthlyPnL is realized P&L bucketed by exit month (YYYY-MM).
type MonthlyPnL struct {
	Month string  `json:"month"`
	PnL   float64 `json:"pnl"`
}

// WinningTrade is a closed profitable trade, listed newest-closed first.
type WinningTrade struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Side        domain.Side `json:"side"`
	RealizedPnL float64     `json:"realizedPnL"`
	RealizedR   float64     `json:"realizedR"`
	ClosedOn    time.Time   `json:"closedOn"`
}

// Summary holds the headline dashboard statistics.
type Summary struct {
	TotalRealizedPnL   float64 `json:"totalRealizedPnL"`
	MonthlyRealizedPnL float64 `json:"monthlyRealizedPnL"`
	WinRate            float64 `json:"winRate"`
	AvgR               float64 `json:"avgR"`
	AvgHoldingDays     float64 `json:"avgHoldingDays"`
	Expectancy         float64 `json:"expectancy"`
	AvgWinner          float64 `json:"avgWinner"`
	AvgLoser           float64 `json:"avgLoser"`
	ProfitFactor       float64 `json:"profitFactor"`
	MaxDrawdown        float64 `json:"maxDrawdown"`
	TradesCount        int     `json:"tradesCount"`
	OpenTradesCount    int     `json:"openTradesCount"`
}

// Dashboard is the full analytics payload.
type Dashboard struct {
	Summary       Summary        `json:"summary"`
	WinningTrades []WinningTrade `json:"winningTrades"`
	EquityCurve   []EquityPoint  `json:"equityCurve"`
	MonthlyPnL    []MonthlyPnL   `json:"monthlyPnL"`
}

// ComputeAll derives metrics for every trade concurrently. Each trade's
// metrics are a pure function of its own fields plus totalCapital, so the
// fan-out needs no coordination beyond indexed writes.
func ComputeAll(ctx context.Context, trades []*domain.Trade, totalCapital float64) []TradeWithMetrics {
	out := make([]TradeWithMetrics, len(trades))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, trade := range trades {
		i, trade := i, trade
		g.Go(func() error {
			out[i] = TradeWithMetrics{Trade: trade, Metrics: ledger.Compute(trade, totalCapital)}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// BuildDashboard replays every exit event across all trades in time order.
// Trades with unparsable (zero) exit dates are excluded from the time series
// but still counted in the aggregate trade counts.
func BuildDashboard(trades []TradeWithMetrics) *Dashboard {
	d := &Dashboard{
		WinningTrades: make([]WinningTrade, 0),
		EquityCurve:   make([]EquityPoint, 0),
		MonthlyPnL:    make([]MonthlyPnL, 0),
	}

	var closed, wins, losses []TradeWithMetrics
	openKeys := make(map[string]struct{})
	var totalRealized float64
	for _, tm := range trades {
		totalRealized += tm.Metrics.RealizedPnL
		if tm.Metrics.Status == domain.StatusOpen {
			openKeys[tm.Trade.Symbol+"__"+string(tm.Trade.Side)] = struct{}{}
			continue
		}
		closed = append(closed, tm)
		if tm.Metrics.RealizedPnL > 0 {
			wins = append(wins, tm)
		} else if tm.Metrics.RealizedPnL < 0 {
			losses = append(losses, tm)
		}
	}

	type exitEvent struct {
		date time.Time
		pnl  float64
	}
	var events []exitEvent
	for _, tm := range trades {
		entries := ledger.BuildEntryLots(tm.Trade)
		fifo := ledger.MatchExits(entries, tm.Trade.Exits, tm.Trade.Side)
		for _, ev := range fifo.ExitEvents {
			if ev.Date.IsZero() {
				continue
			}
			events = append(events, exitEvent{date: ev.Date, pnl: ev.PnL})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].date.Before(events[j].date) })

	var runningEquity, peak, maxDrawdown float64
	monthly := make(map[string]float64)
	for _, ev := range events {
		runningEquity += ev.pnl
		d.EquityCurve = append(d.EquityCurve, EquityPoint{
			Date:   ev.date.UTC().Format("2006-01-02"),
			Equity: ledger.Round(runningEquity, ledger.CurrencyPlaces),
		})
		if runningEquity > peak {
			peak = runningEquity
		}
		if dd := peak - runningEquity; dd > maxDrawdown {
			maxDrawdown = dd
		}
		monthly[ev.date.UTC().Format("2006-01")] += ev.pnl
	}

	months := make([]string, 0, len(monthly))
	for month := range monthly {
		months = append(months, month)
	}
	sort.Strings(months)
	for _, month := range months {
		d.MonthlyPnL = append(d.MonthlyPnL, MonthlyPnL{
			Month: month,
			PnL:   ledger.Round(monthly[month], ledger.CurrencyPlaces),
		})
	}

	var grossWins, grossLosses, avgWinner, avgLoser float64
	for _, tm := range wins {
		grossWins += tm.Metrics.RealizedPnL
	}
	for _, tm := range losses {
		grossLosses += tm.Metrics.RealizedPnL
	}
	if len(wins) > 0 {
		avgWinner = grossWins / float64(len(wins))
	}
	if len(losses) > 0 {
		avgLoser = grossLosses / float64(len(losses))
	}

	var avgR, avgHoldingDays float64
	if len(closed) > 0 {
		var sumR, sumDays float64
		for _, tm := range closed {
			sumR += NormalizedR(tm.Trade, tm.Metrics)
			sumDays += float64(HoldingDays(tm.Trade, time.Now()))
		}
		avgR = sumR / float64(len(closed))
		avgHoldingDays = sumDays / float64(len(closed))
	}

	for _, tm := range wins {
		closedOn := tm.Trade.LastExitDate()
		if closedOn.IsZero() {
			closedOn = tm.Trade.UpdatedAt
		}
		if closedOn.IsZero() {
			closedOn = tm.Trade.EntryDate
		}
		d.WinningTrades = append(d.WinningTrades, WinningTrade{
			ID:          tm.Trade.ID,
			Symbol:      tm.Trade.Symbol,
			Side:        tm.Trade.Side,
			RealizedPnL: ledger.Round(tm.Metrics.RealizedPnL, ledger.CurrencyPlaces),
			RealizedR:   ledger.Round(NormalizedR(tm.Trade, tm.Metrics), ledger.RatioPlaces),
			ClosedOn:    closedOn,
		})
	}
	sort.SliceStable(d.WinningTrades, func(i, j int) bool {
		return d.WinningTrades[i].ClosedOn.After(d.WinningTrades[j].ClosedOn)
	})

	var winRate, profitFactor, monthlyLatest float64
	if len(closed) > 0 {
		winRate = float64(len(wins)) / float64(len(closed)) * 100
	}
	if grossLosses != 0 {
		profitFactor = grossWins / -grossLosses
	}
	if len(d.MonthlyPnL) > 0 {
		monthlyLatest = d.MonthlyPnL[len(d.MonthlyPnL)-1].PnL
	}

	d.Summary = Summary{
		TotalRealizedPnL:   ledger.Round(totalRealized, ledger.CurrencyPlaces),
		MonthlyRealizedPnL: monthlyLatest,
		WinRate:            ledger.Round(winRate, ledger.CurrencyPlaces),
		AvgR:               ledger.Round(avgR, ledger.RatioPlaces),
		AvgHoldingDays:     ledger.Round(avgHoldingDays, ledger.CurrencyPlaces),
		Expectancy:         ledger.Round(avgR, ledger.RatioPlaces),
		AvgWinner:          ledger.Round(avgWinner, ledger.CurrencyPlaces),
		AvgLoser:           ledger.Round(avgLoser, ledger.CurrencyPlaces),
		ProfitFactor:       ledger.Round(profitFactor, ledger.RatioPlaces),
		MaxDrawdown:        ledger.Round(maxDrawdown, ledger.CurrencyPlaces),
		TradesCount:        len(trades),
		OpenTradesCount:    len(openKeys),
	}
	return d
}

// NormalizedR is the dashboard-level R multiple: the trade's realized gain
// as a percentage of entry notional, divided by its aggregate weighted
// stop-loss percentage, floored at -1. This deliberately differs from the
// lot-level capital-at-risk R in the metrics object; the two are separate
// risk lenses.
func NormalizedR(trade *domain.Trade, metrics ledger.Metrics) float64 {
	entries := ledger.BuildEntryLots(trade)
	var totalNotional float64
	for _, lot := range entries {
		totalNotional += lot.EntryPrice * lot.Qty
	}
	if totalNotional <= 0 {
		return 0
	}
	gainPercent := metrics.RealizedPnL / totalNotional * 100
	slPercent := ledger.WeightedStopLossPercent(entries)
	if slPercent == 0 {
		return 0
	}
	r := gainPercent / slPercent
	if r <= -1 {
		return -1
	}
	return r
}

// HoldingDays returns the inclusive calendar-day span from entry to the last
// exit, or to now for a still-open trade.
func HoldingDays(trade *domain.Trade, now time.Time) int {
	if trade.EntryDate.IsZero() {
		return 0
	}
	end := trade.LastExitDate()
	if end.IsZero() {
		end = now
	}
	start := trade.EntryDate.UTC()
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	endUTC := end.UTC()
	endDay := time.Date(endUTC.Year(), endUTC.Month(), endUTC.Day(), 0, 0, 0, 0, time.UTC)
	days := int(endDay.Sub(startDay).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days + 1
}
