package model

import "time"

// Strategy side constants define which order-side family opens positions.
// A buy strategy opens with buys and closes with sells; a sell strategy
// is the mirror image.
const (
	StrategySideBuy  = "buy"
	StrategySideSell = "sell"
)

// Order side vocabulary as reported by brokers and backtest engines.
const (
	SideBuy        = "buy"
	SideBuyToCover = "buy_to_cover"
	SideBuyToClose = "buy_to_close"

	SideSell        = "sell"
	SideSellToClose = "sell_to_close"
	SideSellShort   = "sell_short"
)

// Execution represents a single fill reported by the broker or produced by a
// backtest. The identification pass enriches it in place with TradeID,
// OpenVolume and the entry/exit flags.
type Execution struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Broker pass-through identifiers
	AccountID  string `gorm:"size:60;index" json:"account_id"`
	ExternalID string `gorm:"size:60;index" json:"external_id"` // broker fill id, empty for backtests
	OrderID    string `gorm:"size:60" json:"order_id"`

	Symbol     string  `gorm:"size:30;index" json:"symbol"`
	Side       string  `gorm:"size:20" json:"side"`
	Quantity   float64 `json:"quantity"` // positive magnitude; sign is derived from Side
	Price      float64 `json:"price"`
	NetCash    float64 `gorm:"column:net_cash_with_billable" json:"net_cash_with_billable"`
	Commission float64 `json:"commission"`

	ExecutedAt time.Time `gorm:"index" json:"executed_at"`
	Date       string    `gorm:"size:10" json:"date"`        // YYYY-MM-DD
	TimeOfDay  string    `gorm:"size:8" json:"time_of_day"`  // HH:MM:SS

	// Present only on strategy-originated (backtest) fills. Broker statements
	// never carry these, so they stay nil there.
	StopLossPrice   *float64 `json:"stop_loss_price,omitempty"`
	TakeProfitPrice *float64 `json:"take_profit_price,omitempty"`
	RiskPerTrade    *float64 `json:"risk_per_trade,omitempty"` // fraction of account risked

	// Set by the identification pass
	TradeID    *int64  `gorm:"index" json:"trade_id,omitempty"`
	OpenVolume float64 `json:"open_volume"` // symbol open volume after this fill
	IsEntry    bool    `json:"is_entry"`
	IsExit     bool    `json:"is_exit"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName allows you to control the exact table name for executions.
func (Execution) TableName() string {
	return "executions"
}

func isBuyFamily(side string) bool {
	switch side {
	case SideBuy, SideBuyToCover, SideBuyToClose:
		return true
	}
	return false
}

func isSellFamily(side string) bool {
	switch side {
	case SideSell, SideSellToClose, SideSellShort:
		return true
	}
	return false
}

// IsKnownSide reports whether side belongs to either side family.
func IsKnownSide(side string) bool {
	return isBuyFamily(side) || isSellFamily(side)
}

// IsOpeningSide reports whether side opens positions under the given strategy side.
func IsOpeningSide(side, strategySide string) bool {
	if strategySide == StrategySideSell {
		return isSellFamily(side)
	}
	return isBuyFamily(side)
}

// IsClosingSide reports whether side closes positions under the given strategy side.
func IsClosingSide(side, strategySide string) bool {
	if strategySide == StrategySideSell {
		return isBuyFamily(side)
	}
	return isSellFamily(side)
}

// SignedQuantity returns the economic signed quantity of the fill: buy-family
// sides add exposure, sell-family sides remove it. Unknown sides contribute zero.
// This is the view trade aggregation works with, independent of strategy side.
func (e Execution) SignedQuantity() float64 {
	switch {
	case isBuyFamily(e.Side):
		return e.Quantity
	case isSellFamily(e.Side):
		return -e.Quantity
	}
	return 0
}

// PositionDelta returns the change this fill applies to the strategy's open
// volume: opening sides add the quantity, closing sides subtract it. For a buy
// strategy this equals SignedQuantity; for a sell strategy the sign is flipped,
// so a freshly opened short carries positive open volume from the strategy's
// point of view. Unknown sides contribute zero.
func (e Execution) PositionDelta(strategySide string) float64 {
	switch {
	case IsOpeningSide(e.Side, strategySide):
		return e.Quantity
	case IsClosingSide(e.Side, strategySide):
		return -e.Quantity
	}
	return 0
}
