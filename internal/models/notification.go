package models

import (
	"time"
)

type NotificationKind string

const (
	NotificationStationPending     NotificationKind = "station_pending" // to admins
	NotificationStationApproved    NotificationKind = "station_approved"
	NotificationStationRejected    NotificationKind = "station_rejected"
	NotificationStationResubmitted NotificationKind = "station_resubmitted"
	NotificationReportThanks       NotificationKind = "comment_report_thanks"
	NotificationCommentReported    NotificationKind = "comment_reported" // to admins
)

// Notification is an in-app inbox entry.
type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"` // Receiver
	User      User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Kind      NotificationKind `gorm:"type:varchar(30);not null" json:"kind"`
	Message   string           `gorm:"type:text" json:"message"`
	IsRead    bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
