package model

import "time"

// Reject reason templates. Reasons are data: they end up in the database and
// in reports, so the wording stays stable.
const (
	RejectReasonUnknownSide    = "Unknown order type '%s' for %s strategy"
	RejectReasonNoOpenPosition = "No open position for %s, cannot %s"
	RejectReasonZeroQuantity   = "Quantity not greater than zero"
)

// RejectedExecution preserves a fill that could not participate in trade
// identification together with the reason it was diverted. Rejections are
// recoverable: the batch that produced them keeps going.
type RejectedExecution struct {
	ID uint `gorm:"primaryKey" json:"id"`

	RunID string `gorm:"size:36;index" json:"run_id"` // ingest run that rejected it

	AccountID  string  `gorm:"size:60" json:"account_id"`
	ExternalID string  `gorm:"size:60" json:"external_id"`
	Symbol     string  `gorm:"size:30;index" json:"symbol"`
	Side       string  `gorm:"size:20" json:"side"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`

	ExecutedAt time.Time `json:"executed_at"`
	Reason     string    `gorm:"size:255;not null" json:"reason"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName allows you to control the exact table name for rejected executions.
func (RejectedExecution) TableName() string {
	return "rejected_executions"
}

// NewRejectedExecution snapshots the fields of e worth keeping for the audit
// trail. The run id is stamped later by the pipeline that owns the batch.
func NewRejectedExecution(e Execution, reason string) RejectedExecution {
	return RejectedExecution{
		AccountID:  e.AccountID,
		ExternalID: e.ExternalID,
		Symbol:     e.Symbol,
		Side:       e.Side,
		Quantity:   e.Quantity,
		Price:      e.Price,
		ExecutedAt: e.ExecutedAt,
		Reason:     reason,
	}
}
