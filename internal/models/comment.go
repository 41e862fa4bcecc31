package models

import (
	"time"
)

type Comment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	StationID    uint      `gorm:"not null;index;uniqueIndex:idx_comment_station_author" json:"station_id"`
	Station      Station   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	AuthorUserID uint      `gorm:"not null;uniqueIndex:idx_comment_station_author" json:"author_user_id"`
	Author       User      `gorm:"foreignKey:AuthorUserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Text         string    `gorm:"size:144;not null" json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
