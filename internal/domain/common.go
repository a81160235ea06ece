package domain

// Side represents the direction of a trade (LONG or SHORT).
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// OrderSide represents the side of a raw broker order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// TradeStatus represents the derived status of a trade.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "OPEN"
	StatusClosed TradeStatus = "CLOSED"
)

// ImportSource identifies the broker tradebook format an import came from.
type ImportSource string

const (
	SourceZerodha ImportSource = "ZERODHA"
	SourceDhan    ImportSource = "DHAN"
)
