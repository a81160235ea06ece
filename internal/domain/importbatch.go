package domain

import "time"

// PreviewRow is a normalized input row kept on an import batch for audit
// display. All values are stored as text, exactly as shown to the user.
type PreviewRow struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	DateText string `json:"dateText"`
	Qty      string `json:"qty"`
	Price    string `json:"price"`
	Status   string `json:"status"`
}

// ImportBatch records one broker tradebook import run. Trades synthesized by
// the run reference the batch via ImportBatchID; deleting a batch cascades to
// those trades.
type ImportBatch struct {
	ID            string       `json:"id"`
	Source        ImportSource `json:"source"`
	FileName      string       `json:"fileName,omitempty"`
	ImportedCount int          `json:"importedCount"`
	PreviewRows   []PreviewRow `json:"previewRows,omitempty"`
	TradesCount   int          `json:"tradesCount,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}
