package ledger

import "tradejournal/internal/domain"

// Metrics is the derived per-trade metrics object. Currency fields carry
// 2 decimals, ratios 4, quantities 6; all rounded half away from zero.
type Metrics struct {
	TotalEntryQty    float64            `json:"totalEntryQty"`
	AvgEntryPrice    float64            `json:"avgEntryPrice"`
	OpenQty          float64            `json:"openQty"`
	ExitedQty        float64            `json:"exitedQty"`
	CapitalAtRisk    float64            `json:"capitalAtRisk"`
	RiskPercent      float64            `json:"riskPercent"`
	RealizedPnL      float64            `json:"realizedPnL"`
	GrossRealizedPnL float64            `json:"grossRealizedPnL"`
	Charges          float64            `json:"charges"`
	UnrealizedPnL    *float64           `json:"unrealizedPnL"`
	RealizedR        float64            `json:"realizedR"`
	GrossRealizedR   float64            `json:"grossRealizedR"`
	Status           domain.TradeStatus `json:"status"`
}

// Compute derives the full metrics object for a trade. totalCapital feeds
// the risk percentage; pass 0 when unknown. The trade is read only, never
// mutated. Well-formed input (the ledger invariants) is the caller's
// responsibility; this never fails.
func Compute(trade *domain.Trade, totalCapital float64) Metrics {
	entries := BuildEntryLots(trade)
	var totalEntryQty float64
	for _, lot := range entries {
		totalEntryQty += lot.Qty
	}
	var exitedQty float64
	for _, exit := range trade.Exits {
		exitedQty += exit.ExitQty
	}

	fifo := MatchExits(entries, trade.Exits, trade.Side)
	openQty := fifo.OpenQty
	if openQty < 0 {
		openQty = 0
	}
	openQty = Round(openQty, QuantityPlaces)

	avgEntryPrice := WeightedAvgEntryPrice(entries)
	if openQty > 0 {
		avgEntryPrice = fifo.AvgOpenEntryPrice
	}

	var capitalAtRisk float64
	if openQty > EpsilonQty {
		capitalAtRisk = CapitalAtRisk(fifo.OpenLots, trade.StopLossAdjustments)
	}

	netRealizedPnL := fifo.RealizedPnL - trade.Charges
	unrealized := unrealizedPnL(openQty, trade.LastPrice, avgEntryPrice, trade.Side)

	var realizedR, netRealizedR float64
	if capitalAtRisk != 0 {
		realizedR = fifo.RealizedPnL / capitalAtRisk
		netRealizedR = netRealizedPnL / capitalAtRisk
	}

	status := domain.StatusClosed
	if openQty > 0 {
		status = domain.StatusOpen
	}

	var riskPercent float64
	if totalCapital > 0 {
		riskPercent = capitalAtRisk / totalCapital * 100
	}

	m := Metrics{
		TotalEntryQty:    Round(totalEntryQty, QuantityPlaces),
		AvgEntryPrice:    Round(avgEntryPrice, RatioPlaces),
		OpenQty:          openQty,
		ExitedQty:        Round(exitedQty, QuantityPlaces),
		CapitalAtRisk:    Round(capitalAtRisk, CurrencyPlaces),
		RiskPercent:      Round(riskPercent, CurrencyPlaces),
		RealizedPnL:      Round(netRealizedPnL, CurrencyPlaces),
		GrossRealizedPnL: Round(fifo.RealizedPnL, CurrencyPlaces),
		Charges:          Round(trade.Charges, CurrencyPlaces),
		RealizedR:        Round(netRealizedR, RatioPlaces),
		GrossRealizedR:   Round(realizedR, RatioPlaces),
		Status:           status,
	}
	if unrealized != nil {
		rounded := Round(*unrealized, CurrencyPlaces)
		m.UnrealizedPnL = &rounded
	}
	return m
}

// unrealizedPnL returns nil when there is no open quantity or no last price.
func unrealizedPnL(openQty float64, lastPrice *float64, avgEntryPrice float64, side domain.Side) *float64 {
	if openQty <= 0 || lastPrice == nil {
		return nil
	}
	var pnl float64
	if side == domain.SideShort {
		pnl = openQty * (avgEntryPrice - *lastPrice)
	} else {
		pnl = openQty * (*lastPrice - avgEntryPrice)
	}
	return &pnl
}
