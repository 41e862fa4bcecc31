package models

import (
	"time"
)

type ModerationAction string

const (
	ActionApprove  ModerationAction = "approve"
	ActionReject   ModerationAction = "reject"
	ActionResubmit ModerationAction = "resubmit" // state machine input only, never stored
)

// ModerationRecord is the append-only audit trail of admin decisions.
type ModerationRecord struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	StationID       uint             `gorm:"not null;index" json:"station_id"`
	Station         Station          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ModeratorUserID uint             `gorm:"not null;index" json:"moderator_user_id"`
	Action          ModerationAction `gorm:"size:20;not null" json:"action"`
	Reason          string           `gorm:"type:text" json:"reason"`
	CreatedAt       time.Time        `gorm:"index" json:"created_at"`
}
