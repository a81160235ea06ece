package importer

import (
	"strings"

	"tradejournal/internal/ports"
)

// Zerodha tradebook header synonyms per logical field.
var (
	zerodhaSymbolHeaders   = []string{"symbol", "tradingsymbol", "trading symbol"}
	zerodhaSideHeaders     = []string{"trade type", "type", "buy/sell", "transaction type", "side"}
	zerodhaQtyHeaders      = []string{"quantity", "qty", "filled quantity", "executed quantity"}
	zerodhaPriceHeaders    = []string{"price", "trade price", "average price", "avg price"}
	zerodhaOrderIDHeaders  = []string{"order id", "order_id", "orderid"}
	zerodhaTradeIDHeaders  = []string{"trade id", "trade_id", "tradeid"}
	zerodhaExecTimeHeaders = []string{"order execution time", "order_execution_time", "execution time", "time", "timestamp"}
	zerodhaDateHeaders     = []string{"trade date", "trade_date", "date"}
)

// ParseZerodha maps a Zerodha tradebook (header row included) onto
// normalized rows. Rows with an unrecognized side, non-positive qty/price
// or an unparsable timestamp are dropped; missing required columns are a
// validation error.
func ParseZerodha(rows [][]string) ([]NormalizedRow, error) {
	if len(rows) < 2 {
		return nil, ports.Validationf("CSV must include headers and at least one row")
	}

	headers := rows[0]
	symbolIdx := findHeaderIndex(headers, zerodhaSymbolHeaders)
	sideIdx := findHeaderIndex(headers, zerodhaSideHeaders)
	qtyIdx := findHeaderIndex(headers, zerodhaQtyHeaders)
	priceIdx := findHeaderIndex(headers, zerodhaPriceHeaders)
	orderIDIdx := findHeaderIndex(headers, zerodhaOrderIDHeaders)
	tradeIDIdx := findHeaderIndex(headers, zerodhaTradeIDHeaders)
	execTimeIdx := findHeaderIndex(headers, zerodhaExecTimeHeaders)
	dateIdx := findHeaderIndex(headers, zerodhaDateHeaders)

	if symbolIdx < 0 || sideIdx < 0 || qtyIdx < 0 || priceIdx < 0 || (execTimeIdx < 0 && dateIdx < 0) {
		return nil, ports.Validationf("CSV missing required columns. Need symbol, side, quantity, price, and trade date/time.")
	}

	var normalized []NormalizedRow
	for i, r := range rows[1:] {
		symbol := strings.ToUpper(strings.TrimSpace(cell(r, symbolIdx)))
		side, sideOK := parseSide(cell(r, sideIdx))
		qty, qtyOK := parseNumber(cell(r, qtyIdx))
		price, priceOK := parseNumber(cell(r, priceIdx))

		executionTime := parseDate(cell(r, execTimeIdx))
		if executionTime.IsZero() {
			executionTime = parseDate(cell(r, dateIdx))
		}

		if symbol == "" || !sideOK || !qtyOK || qty <= 0 || !priceOK || price <= 0 || executionTime.IsZero() {
			continue
		}

		normalized = append(normalized, NormalizedRow{
			Symbol:        symbol,
			Side:          side,
			Qty:           qty,
			Price:         price,
			ExecutionTime: executionTime,
			OrderID:       strings.TrimSpace(cell(r, orderIDIdx)),
			TradeID:       strings.TrimSpace(cell(r, tradeIDIdx)),
			Index:         i,
		})
	}

	if len(normalized) == 0 {
		return nil, ports.Validationf("No valid trade rows found in the CSV")
	}
	return normalized, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// zerodhaImportRef labels an order event for exit notes and audit.
func zerodhaImportRef(row NormalizedRow) string {
	if row.OrderID != "" {
		return "Order " + row.OrderID
	}
	if row.TradeID != "" {
		return "Trade " + row.TradeID
	}
	return "Zerodha fill"
}
