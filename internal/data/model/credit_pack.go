package model

import (
	"time"
)

// CreditPack one-time top-up; provider_payment_id is the dedup key
type CreditPack struct {
	CreditPackID      string    `gorm:"primaryKey;type:varchar(36)"`
	UserID            string    `gorm:"index;type:varchar(64);not null"`
	PackSize          int       `gorm:"not null"`
	CreditsGranted    int       `gorm:"not null"`
	ProviderPaymentID string    `gorm:"uniqueIndex;type:varchar(64);not null"`
	Status            string    `gorm:"type:varchar(16);not null"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}

// TableName table name
func (CreditPack) TableName() string {
	return "credit_packs"
}
