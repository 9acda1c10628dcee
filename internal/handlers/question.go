package handlers

import (
	"net/http"

	"eventhub/internal/middleware"
	"eventhub/internal/services"

	"github.com/gin-gonic/gin"
)

type askRequest struct {
	Question string `json:"question" binding:"required,min=1"`
}

type QuestionHandler struct {
	questions *services.QuestionService
}

func NewQuestionHandler(questions *services.QuestionService) *QuestionHandler {
	return &QuestionHandler{questions: questions}
}

func (h *QuestionHandler) Ask(c *gin.Context) {
	eventID, ok := pathID(c, "event")
	if !ok {
		return
	}
	var req askRequest
	if !bindJSON(c, &req) {
		return
	}

	q, err := h.questions.Ask(c.Request.Context(), eventID, middleware.CurrentUserID(c), req.Question)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, http.StatusCreated, gin.H{"question_id": q.ID})
}

func (h *QuestionHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "question")
	if !ok {
		return
	}
	if err := h.questions.Delete(c.Request.Context(), id, middleware.CurrentUserID(c)); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{})
}

func (h *QuestionHandler) Upvote(c *gin.Context) {
	h.vote(c, services.VoteUp)
}

func (h *QuestionHandler) Downvote(c *gin.Context) {
	h.vote(c, services.VoteDown)
}

func (h *QuestionHandler) vote(c *gin.Context, dir services.VoteDirection) {
	id, ok := pathID(c, "question")
	if !ok {
		return
	}
	if err := h.questions.Vote(c.Request.Context(), id, middleware.CurrentUserID(c), dir); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{})
}

// ListMine returns the caller's questions, newest first.
func (h *QuestionHandler) ListMine(c *gin.Context) {
	out, err := h.questions.ListByUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, http.StatusOK, out)
}
