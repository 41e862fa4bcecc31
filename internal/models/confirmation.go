package models

import (
	"time"
)

// Confirmation is a user vouching for someone else's price. One per user per price.
type Confirmation struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	PriceReportID    uint        `gorm:"not null;index;uniqueIndex:idx_confirmation_user_price" json:"price_report_id"`
	PriceReport      PriceReport `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ConfirmingUserID uint        `gorm:"not null;uniqueIndex:idx_confirmation_user_price" json:"confirming_user_id"`
	CreatedAt        time.Time   `json:"created_at"`
}
