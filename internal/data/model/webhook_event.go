package model

import (
	"time"
)

// WebhookEvent delivery log, unique per provider delivery id
type WebhookEvent struct {
	WebhookEventID  string `gorm:"primaryKey;type:varchar(36)"`
	Provider        string `gorm:"type:varchar(32);not null;uniqueIndex:idx_provider_delivery,priority:1"`
	DeliveryID      string `gorm:"type:varchar(128);not null;uniqueIndex:idx_provider_delivery,priority:2"`
	EventType       string `gorm:"index;type:varchar(64);not null"`
	Payload         string `gorm:"type:text"`
	ProcessedAt     *time.Time
	ProcessingError string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// TableName table name
func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// Models lists every table for AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&Customer{},
		&Subscription{},
		&CreditTransaction{},
		&CreditPack{},
		&WebhookEvent{},
	}
}
