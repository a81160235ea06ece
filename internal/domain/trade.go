package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultStopLossPct is applied when a trade is created without an explicit
// stop loss: 3% below the entry for LONG, 3% above for SHORT.
const DefaultStopLossPct = 0.03

// Pyramid is an additional entry lot added to an already-open position.
type Pyramid struct {
	ID       string    `json:"id"`
	Date     time.Time `json:"date"`
	Price    float64   `json:"price"`
	Qty      float64   `json:"qty"`
	StopLoss float64   `json:"stopLoss"`
}

// ExitRecord is a full or partial exit from a position.
type ExitRecord struct {
	ID        string    `json:"id"`
	ExitDate  time.Time `json:"exitDate"`
	ExitPrice float64   `json:"exitPrice"`
	ExitQty   float64   `json:"exitQty"`
	Notes     string    `json:"notes,omitempty"`
}

// StopLossAdjustment is a quantity-scoped stop-loss revision applied to the
// currently open quantity of a trade.
type StopLossAdjustment struct {
	ID       string    `json:"id"`
	Date     time.Time `json:"date"`
	Qty      float64   `json:"qty"`
	StopLoss float64   `json:"stopLoss"`
}

// Trade is the persisted journal aggregate: one base entry plus any pyramid
// adds, exits and stop-loss adjustments. Metrics are derived, never stored.
type Trade struct {
	ID                  string               `json:"id"`
	Symbol              string               `json:"symbol"`
	Side                Side                 `json:"side"`
	EntryDate           time.Time            `json:"entryDate"`
	EntryPrice          float64              `json:"entryPrice"`
	EntryQty            float64              `json:"entryQty"`
	StopLoss            float64              `json:"stopLoss"`
	Pyramids            []Pyramid            `json:"pyramids"`
	Exits               []ExitRecord         `json:"exits"`
	StopLossAdjustments []StopLossAdjustment `json:"stopLossAdjustments"`
	Charges             float64              `json:"charges"`
	LastPrice           *float64             `json:"lastPrice,omitempty"`
	Strategy            string               `json:"strategy,omitempty"`
	Notes               string               `json:"notes,omitempty"`
	Tags                []string             `json:"tags,omitempty"`
	ImportBatchID       string               `json:"importBatchId,omitempty"`
	CreatedAt           time.Time            `json:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt"`
}

// TotalEntryQty returns the base entry quantity plus all pyramid quantities.
func (t *Trade) TotalEntryQty() float64 {
	total := t.EntryQty
	for _, p := range t.Pyramids {
		total += p.Qty
	}
	return total
}

// TotalExitQty returns the sum of all exit quantities.
func (t *Trade) TotalExitQty() float64 {
	var total float64
	for _, e := range t.Exits {
		total += e.ExitQty
	}
	return total
}

// OpenQty returns the currently open quantity (entries minus exits).
func (t *Trade) OpenQty() float64 {
	return t.TotalEntryQty() - t.TotalExitQty()
}

// LastExitDate returns the latest exit date, or the zero time if the trade
// has no exits.
func (t *Trade) LastExitDate() time.Time {
	var latest time.Time
	for _, e := range t.Exits {
		if e.ExitDate.After(latest) {
			latest = e.ExitDate
		}
	}
	return latest
}

// FindPyramid returns the pyramid with the given id, or nil.
func (t *Trade) FindPyramid(id string) *Pyramid {
	for i := range t.Pyramids {
		if t.Pyramids[i].ID == id {
			return &t.Pyramids[i]
		}
	}
	return nil
}

// FindExit returns the exit with the given id, or nil.
func (t *Trade) FindExit(id string) *ExitRecord {
	for i := range t.Exits {
		if t.Exits[i].ID == id {
			return &t.Exits[i]
		}
	}
	return nil
}

// DefaultStopLoss returns stopLoss unchanged when it is already set,
// otherwise the default derived from the entry price and side, rounded to
// 4 decimals.
func DefaultStopLoss(entryPrice float64, side Side, stopLoss float64) float64 {
	if stopLoss > 0 {
		return stopLoss
	}
	if entryPrice <= 0 {
		return stopLoss
	}
	multiplier := 1 - DefaultStopLossPct
	if side == SideShort {
		multiplier = 1 + DefaultStopLossPct
	}
	return decimal.NewFromFloat(entryPrice * multiplier).Round(4).InexactFloat64()
}
