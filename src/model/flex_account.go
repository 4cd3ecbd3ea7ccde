package model

import "time"

// FlexAccount holds the credentials needed to pull execution statements for
// one broker account through the IBKR Flex Web Service. The token is stored
// encrypted and only decrypted right before a request.
type FlexAccount struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Name      string `gorm:"size:100;uniqueIndex" json:"name"` // e.g. "paper", "live"
	AccountID string `gorm:"size:60" json:"account_id"`

	TokenHash string `gorm:"column:token;type:text" json:"-"` // encrypted Flex token
	QueryID   string `gorm:"size:60" json:"query_id"`

	Active bool `gorm:"column:active" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName allows you to control the exact table name for flex accounts.
func (FlexAccount) TableName() string {
	return "flex_accounts"
}
