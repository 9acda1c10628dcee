package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventhub/internal/metrics"
	"eventhub/internal/models"
	"eventhub/internal/utils"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Search status filters.
const (
	StatusMyEvents  = "MY_EVENTS"
	StatusAttending = "ATTENDING"
	StatusOpen      = "OPEN"
	StatusArchive   = "ARCHIVE"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

type CreateEventParams struct {
	Name              string
	Description       string
	Location          string
	Start             int64
	CloseRegistration int64
	MaxAttendees      int
}

// UpdateEventParams holds the fields to change; nil fields are left alone.
type UpdateEventParams struct {
	Name              *string
	Description       *string
	Location          *string
	Start             *int64
	CloseRegistration *int64
	MaxAttendees      *int
}

func (p UpdateEventParams) empty() bool {
	return p.Name == nil && p.Description == nil && p.Location == nil &&
		p.Start == nil && p.CloseRegistration == nil && p.MaxAttendees == nil
}

type SearchFilter struct {
	Query    string
	Status   string
	Limit    *int
	Offset   *int
	ViewerID uint // 0 when anonymous
}

// EventDetail is an event as seen by one viewer.
type EventDetail struct {
	Event           models.Event
	DescriptionHTML string
	NumberAttending int
	Questions       []models.Question
	// Attendees is only loaded for the creator.
	Attendees   []models.User
	IsCreator   bool
	IsAttending bool
}

type EventService struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewEventService(db *gorm.DB, m *metrics.Metrics, logger zerolog.Logger) *EventService {
	return &EventService{
		db:      db,
		metrics: m,
		logger:  logger.With().Str("component", "events").Logger(),
		now:     time.Now,
	}
}

func (s *EventService) nowMillis() int64 {
	return s.now().UnixMilli()
}

func (s *EventService) Create(ctx context.Context, creatorID uint, p CreateEventParams) (*models.Event, error) {
	now := s.nowMillis()
	if p.Start < now {
		return nil, invalid("Start time cannot be in the past")
	}
	if p.CloseRegistration < 0 {
		return nil, invalid("Close registration time must be a positive timestamp")
	}
	if p.CloseRegistration >= p.Start {
		return nil, invalid("Registration must close before the start time")
	}
	if p.MaxAttendees < 1 {
		return nil, invalid("Max attendees must be at least 1")
	}

	event := models.Event{
		Name:              p.Name,
		Description:       p.Description,
		Location:          p.Location,
		StartDate:         p.Start,
		CloseRegistration: p.CloseRegistration,
		MaxAttendees:      p.MaxAttendees,
		CreatorID:         creatorID,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&event).Error; err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info().Uint("event_id", event.ID).Uint("creator_id", creatorID).Msg("event created")
	return &event, nil
}

func (s *EventService) find(tx *gorm.DB, eventID uint) (*models.Event, error) {
	var event models.Event
	if err := tx.First(&event, eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("find event %d: %w", eventID, err)
	}
	return &event, nil
}

// Get loads an event with its questions. viewerID is 0 for anonymous viewers.
func (s *EventService) Get(ctx context.Context, eventID, viewerID uint) (*EventDetail, error) {
	tx := s.db.WithContext(ctx)

	event, err := s.find(tx.Preload("Creator"), eventID)
	if err != nil {
		return nil, err
	}

	var questions []models.Question
	err = tx.Preload("Asker").
		Where("event_id = ?", eventID).
		Order("votes DESC").Order("id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("list questions for event %d: %w", eventID, err)
	}

	detail := &EventDetail{
		Event:           *event,
		DescriptionHTML: utils.RenderMarkdown(event.Description),
		NumberAttending: event.AttendeeCount,
		Questions:       questions,
		IsCreator:       viewerID != 0 && viewerID == event.CreatorID,
	}

	switch {
	case detail.IsCreator:
		var attendees []models.User
		err = tx.Model(&models.User{}).
			Joins("JOIN attendees ON attendees.user_id = users.id").
			Where("attendees.event_id = ?", eventID).
			Order("attendees.id ASC").
			Find(&attendees).Error
		if err != nil {
			return nil, fmt.Errorf("list attendees for event %d: %w", eventID, err)
		}
		detail.Attendees = attendees
	case viewerID != 0:
		attending, err := s.isAttending(tx, eventID, viewerID)
		if err != nil {
			return nil, err
		}
		detail.IsAttending = attending
	}

	return detail, nil
}

func (s *EventService) isAttending(tx *gorm.DB, eventID, userID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.Attendee{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return n > 0, nil
}

func (s *EventService) Update(ctx context.Context, eventID, requesterID uint, p UpdateEventParams) error {
	if p.empty() {
		return invalid("At least one field must be provided (e.g. name, description, location, start, close_registration, or max_attendees)")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := s.find(tx, eventID)
		if err != nil {
			return err
		}
		if event.CreatorID != requesterID {
			return ErrEventUpdateForbidden
		}

		updates := map[string]any{}
		if p.Name != nil {
			updates["name"] = *p.Name
		}
		if p.Description != nil {
			updates["description"] = *p.Description
		}
		if p.Location != nil {
			updates["location"] = *p.Location
		}
		if p.Start != nil {
			if *p.Start < s.nowMillis() {
				return invalid("Start time cannot be in the past")
			}
			updates["start_date"] = *p.Start
			event.StartDate = *p.Start
		}
		if p.CloseRegistration != nil {
			if *p.CloseRegistration < 0 {
				return invalid("Close registration time must be a positive timestamp")
			}
			updates["close_registration"] = *p.CloseRegistration
			event.CloseRegistration = *p.CloseRegistration
		}
		if p.MaxAttendees != nil {
			if *p.MaxAttendees < 1 {
				return invalid("Max attendees must be at least 1")
			}
			updates["max_attendees"] = *p.MaxAttendees
		}

		if event.CloseRegistration != models.RegistrationClosed && event.CloseRegistration >= event.StartDate {
			return invalid("Registration must close before the start time")
		}

		if err := tx.Model(event).Updates(updates).Error; err != nil {
			return fmt.Errorf("update event %d: %w", eventID, err)
		}
		return nil
	})
}

// Close cancels an event by closing its registration. The row is kept.
func (s *EventService) Close(ctx context.Context, eventID, requesterID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := s.find(tx, eventID)
		if err != nil {
			return err
		}
		if event.CreatorID != requesterID {
			return ErrEventDeleteForbidden
		}
		err = tx.Model(event).Update("close_registration", models.RegistrationClosed).Error
		if err != nil {
			return fmt.Errorf("close event %d: %w", eventID, err)
		}
		s.logger.Info().Uint("event_id", eventID).Msg("event closed")
		return nil
	})
}

// Register adds userID to the event's attendees. The capacity check and the
// insert commit together, so max_attendees holds under concurrent requests.
func (s *EventService) Register(ctx context.Context, eventID, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := s.find(tx, eventID)
		if err != nil {
			return err
		}
		if event.CreatorID == userID {
			return ErrAlreadyRegistered
		}
		attending, err := s.isAttending(tx, eventID, userID)
		if err != nil {
			return err
		}
		if attending {
			return ErrAlreadyRegistered
		}

		now := s.nowMillis()
		if event.IsFull() {
			return ErrEventFull
		}
		if event.IsClosed(now) {
			return ErrRegistrationClosed
		}

		res := tx.Model(&models.Event{}).
			Where("id = ? AND attendee_count < max_attendees AND close_registration <> ? AND close_registration >= ?",
				eventID, models.RegistrationClosed, now).
			UpdateColumn("attendee_count", gorm.Expr("attendee_count + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("reserve seat on event %d: %w", eventID, res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost a race; report whichever guard failed.
			event, err = s.find(tx, eventID)
			if err != nil {
				return err
			}
			if event.IsFull() {
				return ErrEventFull
			}
			return ErrRegistrationClosed
		}

		attendee := models.Attendee{EventID: eventID, UserID: userID}
		if err := tx.Omit(clause.Associations).Create(&attendee).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyRegistered
			}
			return fmt.Errorf("add attendee: %w", err)
		}
		return nil
	})

	s.metrics.Registrations.WithLabelValues(registrationResult(err)).Inc()
	return err
}

func registrationResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrEventFull):
		return "full"
	case errors.Is(err, ErrRegistrationClosed):
		return "closed"
	case errors.Is(err, ErrAlreadyRegistered):
		return "duplicate"
	case errors.Is(err, ErrEventNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Search lists events matching f, each with its creator loaded.
func (s *EventService) Search(ctx context.Context, f SearchFilter) ([]models.Event, error) {
	limit := defaultSearchLimit
	if f.Limit != nil {
		limit = *f.Limit
	}
	if limit < 1 || limit > maxSearchLimit {
		return nil, invalid("Limit must be between 1 and 100")
	}
	offset := 0
	if f.Offset != nil {
		offset = *f.Offset
	}
	if offset < 0 {
		return nil, invalid("Offset must be non-negative")
	}

	switch f.Status {
	case "", StatusOpen, StatusArchive:
	case StatusMyEvents, StatusAttending:
		if f.ViewerID == 0 {
			return nil, ErrAuthRequired
		}
	default:
		return nil, invalid("Invalid status parameter")
	}

	tx := s.db.WithContext(ctx)
	q := tx.Model(&models.Event{}).Preload("Creator")
	if f.Query != "" {
		q = q.Where(`LOWER(name) LIKE LOWER(?) ESCAPE '\'`, "%"+escapeLike(f.Query)+"%")
	}

	now := s.nowMillis()
	switch f.Status {
	case StatusMyEvents:
		q = q.Where("creator_id = ?", f.ViewerID)
	case StatusAttending:
		q = q.Where("id IN (?) AND creator_id <> ?",
			tx.Model(&models.Attendee{}).Select("event_id").Where("user_id = ?", f.ViewerID),
			f.ViewerID)
	case StatusOpen:
		q = q.Where("close_registration > ? AND close_registration <> ?", now, models.RegistrationClosed)
	case StatusArchive:
		q = q.Where("close_registration < ?", now)
	}

	var events []models.Event
	err := q.Order("start_date ASC").Order("id ASC").
		Limit(limit).Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	return events, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
