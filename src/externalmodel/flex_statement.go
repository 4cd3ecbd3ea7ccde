package externalmodel

// FlexTradeRow is one trade confirmation row of an IBKR Flex statement,
// exactly as the statement carries it: quantity still signed, the timestamp
// still the raw "2024-03-04;09:31:02" string. Normalization into the
// executions schema happens downstream.
type FlexTradeRow struct {
	AccountID  string  `json:"account_id"`
	TradeID    string  `json:"trade_id"`
	OrderID    string  `json:"order_id"`
	Symbol     string  `json:"symbol"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	NetCash    float64 `json:"net_cash"`
	Commission float64 `json:"commission"`
	DateTime   string  `json:"date_time"`
}
