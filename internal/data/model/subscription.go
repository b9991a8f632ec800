package model

import (
	"time"
)

// Subscription one row per user, never deleted
type Subscription struct {
	SubscriptionID         string    `gorm:"primaryKey;type:varchar(36)"`
	UserID                 string    `gorm:"uniqueIndex;type:varchar(64);not null"`
	Plan                   string    `gorm:"type:varchar(16);not null"`
	Status                 string    `gorm:"index;type:varchar(16);not null"` // active/canceled/past_due
	CreditsMonthly         int       `gorm:"not null"`
	CurrentBalance         float64   `gorm:"type:double precision;not null;default:0"`
	DailyCap               float64   `gorm:"type:double precision;not null"`
	DailyTokenLimit        int64     `gorm:"not null"`
	DailyCreditsUsed       float64   `gorm:"type:double precision;not null;default:0"`
	DailyTokensUsed        int64     `gorm:"not null;default:0"`
	LastDailyReset         time.Time `gorm:"not null"`
	ProviderCustomerID     string    `gorm:"index;type:varchar(64)"`
	ProviderSubscriptionID string    `gorm:"index;type:varchar(64)"`
	CurrentPeriodEnd       time.Time
	CreatedAt              time.Time `gorm:"autoCreateTime"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime"`
}

// TableName table name
func (Subscription) TableName() string {
	return "subscriptions"
}
