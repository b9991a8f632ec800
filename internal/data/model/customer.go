package model

import (
	"time"
)

// Customer auth subject to payment provider customer mapping
type Customer struct {
	CustomerID         string    `gorm:"primaryKey;type:varchar(36)"`
	AuthID             string    `gorm:"uniqueIndex;type:varchar(64);not null"`
	Email              string    `gorm:"index;type:varchar(255)"`
	ProviderCustomerID string    `gorm:"index;type:varchar(64)"` // empty until the first webhook
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

// TableName table name
func (Customer) TableName() string {
	return "customers"
}
