package model

// OpenPosition is one row of the seed state reloaded before an incremental
// identification run: a symbol whose stored executions do not net to zero,
// its open volume and the trade id that volume belongs to. Quantity carries
// the economic sign (buys positive, sells negative), matching what summing
// the stored signed quantities produces.
type OpenPosition struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"` // economic signed open volume
	TradeID  int64   `json:"trade_id"`
}
