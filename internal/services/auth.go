package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eventhub/internal/metrics"
	"eventhub/internal/models"
	"eventhub/internal/utils"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type RegisterParams struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// AuthService owns credentials and the per-user session token.
type AuthService struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewAuthService(db *gorm.DB, m *metrics.Metrics, logger zerolog.Logger) *AuthService {
	return &AuthService{
		db:      db,
		metrics: m,
		logger:  logger.With().Str("component", "auth").Logger(),
	}
}

func (s *AuthService) Register(ctx context.Context, p RegisterParams) (*models.User, error) {
	hash, salt, err := utils.HashPassword(p.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     strings.TrimSpace(p.Email),
		Password:  hash,
		Salt:      salt,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info().Uint("user_id", user.ID).Msg("user registered")
	return &user, nil
}

// Login verifies credentials and returns the user's session token, issuing one
// if none exists. Repeated or concurrent logins observe the same token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.TrimSpace(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.Logins.WithLabelValues("failure").Inc()
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	if !utils.CheckPasswordHash(password, user.Password, user.Salt) {
		s.metrics.Logins.WithLabelValues("failure").Inc()
		return nil, "", ErrInvalidCredentials
	}

	if user.SessionToken != nil {
		s.metrics.Logins.WithLabelValues("success").Inc()
		return &user, *user.SessionToken, nil
	}

	token, err := utils.GenerateToken()
	if err != nil {
		return nil, "", err
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND session_token IS NULL", user.ID).
		Update("session_token", token)
	if res.Error != nil {
		return nil, "", fmt.Errorf("store session token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Another login got there first.
		if err := s.db.WithContext(ctx).First(&user, user.ID).Error; err != nil {
			return nil, "", fmt.Errorf("reload user: %w", err)
		}
		if user.SessionToken == nil {
			return nil, "", fmt.Errorf("session token for user %d vanished", user.ID)
		}
		token = *user.SessionToken
	}

	user.SessionToken = &token
	s.metrics.Logins.WithLabelValues("success").Inc()
	s.logger.Debug().Uint("user_id", user.ID).Msg("user logged in")
	return &user, token, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrUnauthorized
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("session_token = ?", token).
		Update("session_token", nil)
	if res.Error != nil {
		return fmt.Errorf("clear session token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUnauthorized
	}
	return nil
}

// Authenticate resolves a session token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	var user models.User
	err := s.db.WithContext(ctx).Where("session_token = ?", token).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &user, nil
}
