package models

import (
	"time"
)

type Source string

const (
	SourceOfficial Source = "official"
	SourceUser     Source = "user"
)

type ModerationState string

const (
	StatePending  ModerationState = "pending"
	StateApproved ModerationState = "approved"
	StateRejected ModerationState = "rejected"
)

// Station is a fuel station. Only source=user stations go through moderation.
type Station struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Name            string          `gorm:"size:120;not null" json:"name"`
	Brand           string          `gorm:"size:60" json:"brand"`
	Address         string          `gorm:"size:200;not null" json:"address"`
	City            string          `gorm:"size:100;not null;index" json:"city"`
	Province        string          `gorm:"size:100;not null;index" json:"province"`
	Latitude        float64         `gorm:"not null" json:"latitude"`
	Longitude       float64         `gorm:"not null" json:"longitude"`
	CreatorUserID   *uint           `gorm:"index" json:"creator_user_id"` // nil for official stations
	Creator         *User           `gorm:"foreignKey:CreatorUserID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	Source          Source          `gorm:"size:20;not null;default:'official'" json:"source"`
	ModerationState ModerationState `gorm:"size:20;not null;default:'approved';index" json:"moderation_state"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsCreatedBy reports whether userID created the station.
func (s *Station) IsCreatedBy(userID uint) bool {
	return s.CreatorUserID != nil && *s.CreatorUserID == userID
}

// IsPublic reports whether the station is visible to everyone.
func (s *Station) IsPublic() bool {
	return s.Source == SourceOfficial || s.ModerationState == StateApproved
}
