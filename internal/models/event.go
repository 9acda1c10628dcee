package models

import (
	"time"
)

// RegistrationClosed marks an event whose registration was closed by its creator.
const RegistrationClosed int64 = -1

type Event struct {
	ID                uint      `gorm:"primaryKey" json:"event_id"`
	Name              string    `gorm:"not null" json:"name"`
	Description       string    `gorm:"type:text;not null" json:"description"`
	Location          string    `gorm:"not null" json:"location"`
	StartDate         int64     `gorm:"not null;index" json:"start"`              // unix millis
	CloseRegistration int64     `gorm:"not null;index" json:"close_registration"` // unix millis or RegistrationClosed
	MaxAttendees      int       `gorm:"not null" json:"max_attendees"`
	AttendeeCount     int       `gorm:"not null;default:0" json:"-"` // attendee rows, creator excluded
	CreatorID         uint      `gorm:"not null;index" json:"-"`
	Creator           User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt         time.Time `json:"-"`
	UpdatedAt         time.Time `json:"-"`
}

// IsClosed reports whether registration is closed at the given unix-millis instant.
func (e *Event) IsClosed(nowMillis int64) bool {
	return e.CloseRegistration == RegistrationClosed || e.CloseRegistration < nowMillis
}

func (e *Event) IsFull() bool {
	return e.AttendeeCount >= e.MaxAttendees
}
