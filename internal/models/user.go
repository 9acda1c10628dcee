package models

import (
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"user_id"`
	FirstName    string    `gorm:"not null" json:"first_name"`
	LastName     string    `gorm:"not null" json:"last_name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Password     string    `gorm:"not null" json:"-"` // pbkdf2 hash, hex
	Salt         string    `gorm:"not null" json:"-"` // hex
	SessionToken *string   `gorm:"uniqueIndex;size:64" json:"-"` // NULL when logged out
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}
