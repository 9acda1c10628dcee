package handlers

import (
	"errors"
	"net/http"

	"eventhub/internal/services"
	"eventhub/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Success writes obj as the JSON body.
func Success(c *gin.Context, code int, obj any) {
	c.JSON(code, obj)
}

// Fail writes the error envelope.
func Fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error_message": message})
}

// RespondError maps a service error to a status and envelope. Unexpected
// errors are logged and reported without detail.
func RespondError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
		Fail(c, code, "Server Error")
		return
	}
	zerolog.Ctx(c.Request.Context()).Debug().Err(err).Int("status", code).Msg("request rejected")
	Fail(c, code, err.Error())
}

func statusFor(err error) int {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrAuthRequired):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrEventUpdateForbidden),
		errors.Is(err, services.ErrEventDeleteForbidden),
		errors.Is(err, services.ErrAlreadyRegistered),
		errors.Is(err, services.ErrEventFull),
		errors.Is(err, services.ErrRegistrationClosed),
		errors.Is(err, services.ErrCreatorCannotAsk),
		errors.Is(err, services.ErrNotAttending),
		errors.Is(err, services.ErrQuestionDeleteForbidden),
		errors.Is(err, services.ErrAlreadyVoted):
		return http.StatusForbidden
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrEventNotFound),
		errors.Is(err, services.ErrQuestionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// bindJSON decodes the body into req, writing a 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		Fail(c, http.StatusBadRequest, bindMessage(err))
		return false
	}
	return true
}

// pathID parses the :id parameter, writing a 400 naming entity on failure.
func pathID(c *gin.Context, entity string) (uint, bool) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		Fail(c, http.StatusBadRequest, "Invalid "+entity+" ID")
		return 0, false
	}
	return id, true
}
