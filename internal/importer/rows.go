// Package importer reconstructs trade history from raw broker tradebooks:
// it normalizes Zerodha/Dhan rows, collapses fills into order events and
// replays those events against open-position state.
package importer

import (
	"encoding/csv"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tradejournal/internal/domain"
)

// NormalizedRow is one broker fill after header mapping and value parsing.
type NormalizedRow struct {
	Symbol        string
	Side          domain.OrderSide
	Qty           float64
	Price         float64
	ExecutionTime time.Time
	OrderID       string
	TradeID       string
	Status        string
	OrderType     string
	Exchange      string
	Index         int
}

// ParseDelimited splits raw tradebook text into rows of cells. Files with a
// tab anywhere are treated as TSV (Zerodha console exports paste as TSV);
// everything else goes through the CSV reader. Blank rows are dropped.
func ParseDelimited(text string) [][]string {
	var rows [][]string
	if strings.Contains(text, "\t") {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSuffix(line, "\r")
			cells := strings.Split(line, "\t")
			if rowHasContent(cells) {
				rows = append(rows, cells)
			}
		}
		return rows
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if rowHasContent(record) {
			rows = append(rows, record)
		}
	}
	return rows
}

func rowHasContent(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return true
		}
	}
	return false
}

var headerNormalizer = regexp.MustCompile(`[\s_-]+`)

func normalizeHeader(header string) string {
	return headerNormalizer.ReplaceAllString(strings.ToLower(strings.TrimSpace(header)), "")
}

// findHeaderIndex returns the index of the first header matching any of the
// candidate names (case, spacing and underscores ignored), or -1.
func findHeaderIndex(headers []string, candidates []string) int {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}
	for _, candidate := range candidates {
		want := normalizeHeader(candidate)
		for i, h := range normalized {
			if h == want {
				return i
			}
		}
	}
	return -1
}

// parseNumber parses a broker-formatted number, tolerating thousands
// separators. Returns ok=false for anything non-finite.
func parseNumber(value string) (float64, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseSide maps broker side text onto BUY/SELL. Returns ok=false for
// anything unrecognized.
func parseSide(value string) (domain.OrderSide, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "BUY", "B":
		return domain.Buy, true
	case "SELL", "S":
		return domain.Sell, true
	}
	return "", false
}

// Broker date layouts, tried in order. Two-digit years follow the usual
// 1970 pivot.
var dateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/06 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006",
	"02/01/06",
	"02-01-2006",
	"02-01-06",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate parses the date formats seen in Zerodha and Dhan tradebooks.
// All values are interpreted as UTC. Returns the zero time when nothing
// matches.
func parseDate(value string) time.Time {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}
