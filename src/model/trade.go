package model

import "time"

const (
	DirectionBullish = "bullish"
	DirectionBearish = "bearish"
)

const (
	TradeStatusOpen   = "open"
	TradeStatusClosed = "closed"
)

// Exit type constants classify how a closed trade ended relative to its
// stop and take-profit levels.
const (
	ExitTypeStop       = "stop"
	ExitTypeTakeProfit = "take_profit"
	ExitTypeOther      = "other"
)

// Trade is one reconstructed round trip: everything that happened between a
// symbol's open volume leaving zero and returning to it, reduced to a single
// row. Nullable fields stay nil while the trade is open or when the strategy
// parameters needed to compute them were not provided.
type Trade struct {
	ID uint `gorm:"primaryKey" json:"id"`

	TradeID  int64  `gorm:"uniqueIndex" json:"trade_id"`
	Symbol   string `gorm:"size:30;index" json:"symbol"`
	Strategy string `gorm:"size:100;index" json:"strategy"`

	Direction string `gorm:"size:10;not null" json:"direction"`
	Status    string `gorm:"size:10;not null;default:open" json:"status"`

	NumExecutions int     `json:"num_executions"`
	Quantity      float64 `json:"quantity"` // total entry volume, absolute
	EntryPrice    float64 `json:"entry_price"`

	ExitPrice       *float64 `json:"exit_price,omitempty"`
	StopPrice       *float64 `json:"stop_price,omitempty"`
	TakeProfitPrice *float64 `json:"take_profit_price,omitempty"`

	RiskReward         *float64 `json:"risk_reward,omitempty"`
	RiskAmountPerShare *float64 `json:"risk_amount_per_share,omitempty"`
	RiskPerTrade       *float64 `json:"risk_per_trade,omitempty"` // fraction of account risked
	IsWinner           *int     `json:"is_winner,omitempty"`      // 1 when risk_reward > 0, else 0
	PercReturn         *float64 `json:"perc_return,omitempty"`
	ExitType           *string  `gorm:"size:20" json:"exit_type,omitempty"`

	StartDate string  `gorm:"size:10;index" json:"start_date"`
	StartTime string  `gorm:"size:8" json:"start_time"`
	EndDate   *string `gorm:"size:10" json:"end_date,omitempty"`
	EndTime   *string `gorm:"size:8" json:"end_time,omitempty"`

	DurationHours   *float64 `json:"duration_hours,omitempty"`
	CapitalRequired float64  `json:"capital_required"`
	Commission      float64  `json:"commission"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName allows you to control the exact table name for trades.
func (Trade) TableName() string {
	return "trades"
}
