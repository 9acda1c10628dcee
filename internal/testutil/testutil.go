// Package testutil opens throwaway databases and seeds rows for tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"eventhub/internal/config"
	"eventhub/internal/db"
	"eventhub/internal/models"
	"eventhub/internal/utils"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword satisfies the password rules and is used for every seeded user.
const DefaultPassword = "Passw0rd!"

var seq atomic.Int64

// NewDB returns a migrated in-memory SQLite database closed at test cleanup.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(config.DatabaseConfig{Driver: config.DriverSQLite, URL: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// CreateUser inserts a user with DefaultPassword and a unique email.
func CreateUser(t *testing.T, gdb *gorm.DB, firstName string) *models.User {
	t.Helper()

	hash, salt, err := utils.HashPassword(DefaultPassword)
	require.NoError(t, err)

	user := models.User{
		FirstName: firstName,
		LastName:  "Tester",
		Email:     fmt.Sprintf("user%d@example.com", seq.Add(1)),
		Password:  hash,
		Salt:      salt,
	}
	require.NoError(t, gdb.Create(&user).Error)
	return &user
}

// CreateEvent inserts an event starting in two days with registration open for one more.
func CreateEvent(t *testing.T, gdb *gorm.DB, creatorID uint, name string, maxAttendees int) *models.Event {
	t.Helper()

	now := time.Now()
	event := models.Event{
		Name:              name,
		Description:       "Description of " + name,
		Location:          "Main hall",
		StartDate:         now.Add(48 * time.Hour).UnixMilli(),
		CloseRegistration: now.Add(24 * time.Hour).UnixMilli(),
		MaxAttendees:      maxAttendees,
		CreatorID:         creatorID,
	}
	require.NoError(t, gdb.Omit(clause.Associations).Create(&event).Error)
	return &event
}

// AddAttendee registers userID directly, keeping the attendee counter in step.
func AddAttendee(t *testing.T, gdb *gorm.DB, eventID, userID uint) {
	t.Helper()

	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&models.Attendee{EventID: eventID, UserID: userID}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Event{}).Where("id = ?", eventID).
			UpdateColumn("attendee_count", gorm.Expr("attendee_count + ?", 1)).Error
	}))
}
