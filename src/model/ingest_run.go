package model

import "time"

const (
	RunModeBacktest = "backtest"
	RunModeBroker   = "broker"
)

// IngestRun is the audit row written after each processing run, whether a
// one-shot backtest or a broker sync tick. Rejected executions reference it
// through RunID.
type IngestRun struct {
	ID uint `gorm:"primaryKey" json:"id"`

	RunID    string `gorm:"size:36;uniqueIndex" json:"run_id"`
	Mode     string `gorm:"size:20;not null" json:"mode"`
	Strategy string `gorm:"size:100" json:"strategy"`

	ExecutionsIn   int   `json:"executions_in"`
	Accepted       int   `json:"accepted"`
	Rejected       int   `json:"rejected"`
	TradesUpserted int   `json:"trades_upserted"`
	MaxTradeID     int64 `json:"max_trade_id"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName allows you to control the exact table name for ingest runs.
func (IngestRun) TableName() string {
	return "ingest_runs"
}
