package models

import (
	"time"
)

type ReportReason string

const (
	ReasonSpam                 ReportReason = "spam"
	ReasonInappropriateContent ReportReason = "inappropriate_content"
	ReasonFalseInformation     ReportReason = "false_information"
	ReasonOther                ReportReason = "other"
)

func (r ReportReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonInappropriateContent, ReasonFalseInformation, ReasonOther:
		return true
	}
	return false
}

// CommentReport is an abuse report. A report with several reasons is stored as one row per reason.
type CommentReport struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	CommentID      uint         `gorm:"not null;index;uniqueIndex:idx_report_comment_reporter_reason" json:"comment_id"`
	Comment        Comment      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ReporterUserID uint         `gorm:"not null;index;uniqueIndex:idx_report_comment_reporter_reason" json:"reporter_user_id"`
	Reason         ReportReason `gorm:"size:30;not null;uniqueIndex:idx_report_comment_reporter_reason" json:"reason"`
	Notes          string       `gorm:"size:288" json:"notes"`
	CreatedAt      time.Time    `json:"created_at"`
}
