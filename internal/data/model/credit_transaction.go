package model

import (
	"time"
)

// CreditTransaction append-only ledger
type CreditTransaction struct {
	TransactionID string  `gorm:"primaryKey;type:varchar(36)"`
	UserID        string  `gorm:"type:varchar(64);not null;index:idx_user_created,priority:1"`
	Type          string  `gorm:"type:varchar(16);not null"` // credit/debit/refund/grant
	Amount        float64 `gorm:"type:double precision;not null"`
	Description   string  `gorm:"type:varchar(255)"`
	RelatedTo     string  `gorm:"type:varchar(128)"`
	InputTokens   *int64
	OutputTokens  *int64
	BalanceBefore float64   `gorm:"type:double precision;not null"`
	BalanceAfter  float64   `gorm:"type:double precision;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index:idx_user_created,priority:2"`
}

// TableName table name
func (CreditTransaction) TableName() string {
	return "credit_transactions"
}
