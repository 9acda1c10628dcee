package models

import (
	"time"
)

// Vote records that a user voted on a question. The direction is not stored:
// it only shows up in Question.Votes, so a vote cannot be switched later.
type Vote struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	QuestionID uint      `gorm:"not null;uniqueIndex:idx_question_voter" json:"question_id"`
	Question   Question  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	VoterID    uint      `gorm:"not null;uniqueIndex:idx_question_voter;index" json:"voter_id"`
	CreatedAt  time.Time `json:"-"`
}
