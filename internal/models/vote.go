package models

import (
	"time"
)

// CommentVote marks a comment as useful. Voting again removes it.
type CommentVote struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CommentID   uint      `gorm:"not null;index;uniqueIndex:idx_vote_comment_voter" json:"comment_id"`
	Comment     Comment   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	VoterUserID uint      `gorm:"not null;uniqueIndex:idx_vote_comment_voter" json:"voter_user_id"`
	CreatedAt   time.Time `json:"created_at"`
}
