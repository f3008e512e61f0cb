package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment is one STK push attempt. CheckoutRequestID correlates the row
// with the gateway's asynchronous confirmation.
type Payment struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UserID            uint           `gorm:"not null;index" json:"user_id"`
	AmountCents       int64          `gorm:"not null" json:"amount_cents"`
	Currency          string         `gorm:"size:3;default:'KES'" json:"currency"`
	Phone             string         `gorm:"size:20;not null" json:"phone"`
	Provider          string         `gorm:"size:50;not null" json:"provider"`
	ProviderRef       string         `gorm:"size:255;uniqueIndex" json:"provider_ref"`
	CheckoutRequestID string         `gorm:"size:255;index" json:"checkout_request_id"`
	Status            string         `gorm:"size:20;not null;index" json:"status"` // PENDING, FAILED
	FailureReason     string         `gorm:"size:512" json:"failure_reason,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}
