package services

import "errors"

// Sentinel messages are sent to clients unchanged.
var (
	ErrUnauthorized       = errors.New("Unauthorized")
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrEmailTaken         = errors.New("Email already in use")
	ErrAuthRequired       = errors.New("Authentication required for this status filter")

	ErrUserNotFound = errors.New("User not found")

	ErrEventNotFound        = errors.New("Event not found")
	ErrEventUpdateForbidden = errors.New("You can only update your own events")
	ErrEventDeleteForbidden = errors.New("You can only delete your own events")
	ErrAlreadyRegistered    = errors.New("You are already registered")
	ErrEventFull            = errors.New("Event is at capacity")
	ErrRegistrationClosed   = errors.New("Registration is closed")

	ErrQuestionNotFound        = errors.New("Question not found")
	ErrCreatorCannotAsk        = errors.New("You cannot ask questions on your own events")
	ErrNotAttending            = errors.New("You cannot ask questions on events you are not registered for")
	ErrQuestionDeleteForbidden = errors.New("You can only delete questions that you have authored, or for events that you have created")
	ErrAlreadyVoted            = errors.New("You have already voted on this question")
)

// ValidationError is a rule violation whose message is safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
