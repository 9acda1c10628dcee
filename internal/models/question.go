package models

import (
	"time"
)

type Question struct {
	ID        uint      `gorm:"primaryKey" json:"question_id"`
	Text      string    `gorm:"column:question;type:text;not null" json:"question"`
	AskedBy   uint      `gorm:"not null;index" json:"-"`
	Asker     User      `gorm:"foreignKey:AskedBy;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	EventID   uint      `gorm:"not null;index" json:"event_id"`
	Event     Event     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Votes     int       `gorm:"not null;default:0" json:"votes"` // may go negative
	CreatedAt time.Time `json:"-"`
}
