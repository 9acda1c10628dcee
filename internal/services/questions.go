package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eventhub/internal/metrics"
	"eventhub/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VoteDirection int

const (
	VoteUp   VoteDirection = 1
	VoteDown VoteDirection = -1
)

func (d VoteDirection) String() string {
	if d == VoteDown {
		return "down"
	}
	return "up"
}

// UserQuestion is a question listed on its author's profile.
type UserQuestion struct {
	QuestionID uint   `json:"question_id"`
	Question   string `json:"question"`
	Votes      int    `json:"votes"`
	EventID    uint   `json:"event_id"`
	EventName  string `json:"event_name"`
}

type QuestionService struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewQuestionService(db *gorm.DB, m *metrics.Metrics, logger zerolog.Logger) *QuestionService {
	return &QuestionService{
		db:      db,
		metrics: m,
		logger:  logger.With().Str("component", "questions").Logger(),
	}
}

// Ask posts a question on an event the user attends. Text is stored as written, minus surrounding whitespace.
func (s *QuestionService) Ask(ctx context.Context, eventID, userID uint, text string) (*models.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid(`"question" is not allowed to be empty`)
	}

	var question models.Question
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.First(&event, eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return fmt.Errorf("find event %d: %w", eventID, err)
		}
		if event.CreatorID == userID {
			return ErrCreatorCannotAsk
		}

		var n int64
		err := tx.Model(&models.Attendee{}).
			Where("event_id = ? AND user_id = ?", eventID, userID).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("check attendance: %w", err)
		}
		if n == 0 {
			return ErrNotAttending
		}

		question = models.Question{Text: text, AskedBy: userID, EventID: eventID}
		if err := tx.Omit(clause.Associations).Create(&question).Error; err != nil {
			return fmt.Errorf("create question: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// Delete removes a question and its votes. Allowed for the author and the event creator.
func (s *QuestionService) Delete(ctx context.Context, questionID, requesterID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var question models.Question
		if err := tx.Preload("Event").First(&question, questionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestionNotFound
			}
			return fmt.Errorf("find question %d: %w", questionID, err)
		}
		if question.AskedBy != requesterID && question.Event.CreatorID != requesterID {
			return ErrQuestionDeleteForbidden
		}

		if err := tx.Where("question_id = ?", questionID).Delete(&models.Vote{}).Error; err != nil {
			return fmt.Errorf("delete votes for question %d: %w", questionID, err)
		}
		if err := tx.Delete(&models.Question{}, questionID).Error; err != nil {
			return fmt.Errorf("delete question %d: %w", questionID, err)
		}
		return nil
	})
}

// Vote records a single vote by userID. A second vote in either direction fails.
func (s *QuestionService) Vote(ctx context.Context, questionID, userID uint, dir VoteDirection) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Question{}).Where("id = ?", questionID).Count(&n).Error; err != nil {
			return fmt.Errorf("find question %d: %w", questionID, err)
		}
		if n == 0 {
			return ErrQuestionNotFound
		}

		vote := models.Vote{QuestionID: questionID, VoterID: userID}
		if err := tx.Omit(clause.Associations).Create(&vote).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyVoted
			}
			return fmt.Errorf("record vote: %w", err)
		}

		err := tx.Model(&models.Question{}).
			Where("id = ?", questionID).
			UpdateColumn("votes", gorm.Expr("votes + ?", int(dir))).Error
		if err != nil {
			return fmt.Errorf("update vote count: %w", err)
		}
		return nil
	})

	s.metrics.Votes.WithLabelValues(dir.String(), voteResult(err)).Inc()
	return err
}

func voteResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAlreadyVoted):
		return "duplicate"
	case errors.Is(err, ErrQuestionNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (s *QuestionService) ListByUser(ctx context.Context, userID uint) ([]UserQuestion, error) {
	out := []UserQuestion{}
	err := s.db.WithContext(ctx).
		Table("questions").
		Select("questions.id AS question_id, questions.question, questions.votes, events.id AS event_id, events.name AS event_name").
		Joins("JOIN events ON events.id = questions.event_id").
		Where("questions.asked_by = ?", userID).
		Order("questions.id DESC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list questions for user %d: %w", userID, err)
	}
	return out, nil
}
