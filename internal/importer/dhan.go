package importer

import (
	"strings"

	"tradejournal/internal/ports"
)

// Dhan tradebook header synonyms per logical field.
var (
	dhanSymbolHeaders    = []string{"name", "symbol", "security"}
	dhanSideHeaders      = []string{"buy/sell", "side", "transaction type"}
	dhanQtyHeaders       = []string{"quantity/lot", "quantity", "qty"}
	dhanPriceHeaders     = []string{"trade price", "price"}
	dhanDateHeaders      = []string{"date", "trade date"}
	dhanTimeHeaders      = []string{"time", "trade time"}
	dhanStatusHeaders    = []string{"status"}
	dhanOrderTypeHeaders = []string{"order", "order type", "product"}
	dhanExchangeHeaders  = []string{"exchange"}
)

// ParseDhan maps a Dhan tradebook onto normalized rows. Dhan has no order
// id column; grouping later falls back to timestamp/order-type/exchange.
// Rows whose status column is present and not TRADED are dropped.
func ParseDhan(rows [][]string) ([]NormalizedRow, error) {
	if len(rows) < 2 {
		return nil, ports.Validationf("Tradebook must include headers and at least one row")
	}

	headers := rows[0]
	symbolIdx := findHeaderIndex(headers, dhanSymbolHeaders)
	sideIdx := findHeaderIndex(headers, dhanSideHeaders)
	qtyIdx := findHeaderIndex(headers, dhanQtyHeaders)
	priceIdx := findHeaderIndex(headers, dhanPriceHeaders)
	dateIdx := findHeaderIndex(headers, dhanDateHeaders)
	timeIdx := findHeaderIndex(headers, dhanTimeHeaders)
	statusIdx := findHeaderIndex(headers, dhanStatusHeaders)
	orderTypeIdx := findHeaderIndex(headers, dhanOrderTypeHeaders)
	exchangeIdx := findHeaderIndex(headers, dhanExchangeHeaders)

	if symbolIdx < 0 || sideIdx < 0 || qtyIdx < 0 || priceIdx < 0 || dateIdx < 0 {
		return nil, ports.Validationf("Dhan tradebook missing required columns. Need date, name, buy/sell, quantity, price.")
	}

	var normalized []NormalizedRow
	for i, r := range rows[1:] {
		symbol := strings.ToUpper(strings.TrimSpace(cell(r, symbolIdx)))
		side, sideOK := parseSide(cell(r, sideIdx))
		qty, qtyOK := parseNumber(cell(r, qtyIdx))
		price, priceOK := parseNumber(cell(r, priceIdx))

		dateText := strings.TrimSpace(cell(r, dateIdx))
		timeText := strings.TrimSpace(cell(r, timeIdx))
		dateValue := dateText
		if timeText != "" {
			dateValue = dateText + " " + timeText
		}
		executionTime := parseDate(dateValue)
		if executionTime.IsZero() {
			executionTime = parseDate(dateText)
		}

		status := strings.ToUpper(strings.TrimSpace(cell(r, statusIdx)))

		if symbol == "" || !sideOK || !qtyOK || qty <= 0 || !priceOK || price <= 0 || executionTime.IsZero() {
			continue
		}
		if status != "" && status != "TRADED" {
			continue
		}

		normalized = append(normalized, NormalizedRow{
			Symbol:        symbol,
			Side:          side,
			Qty:           qty,
			Price:         price,
			ExecutionTime: executionTime,
			Status:        status,
			OrderType:     strings.ToUpper(strings.TrimSpace(cell(r, orderTypeIdx))),
			Exchange:      strings.ToUpper(strings.TrimSpace(cell(r, exchangeIdx))),
			Index:         i,
		})
	}

	if len(normalized) == 0 {
		return nil, ports.Validationf("No valid traded rows found in Dhan tradebook")
	}
	return normalized, nil
}

// dhanImportRef labels a Dhan order event for exit notes and audit.
func dhanImportRef(row NormalizedRow) string {
	orderType := row.OrderType
	if orderType == "" {
		orderType = "UNKNOWN"
	}
	exchange := row.Exchange
	if exchange == "" {
		exchange = "NA"
	}
	return strings.TrimSpace(orderType + " " + exchange)
}
