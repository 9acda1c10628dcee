package models

import (
	"time"
)

// Attendee registers a user for an event. The event creator never has a row.
type Attendee struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	EventID   uint      `gorm:"not null;uniqueIndex:idx_event_attendee" json:"event_id"`
	Event     Event     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_event_attendee;index" json:"user_id"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `json:"-"`
}
