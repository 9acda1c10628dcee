package handlers

import (
	"net/http"

	"eventhub/internal/middleware"
	"eventhub/internal/models"
	"eventhub/internal/services"

	"github.com/gin-gonic/gin"
)

type createEventRequest struct {
	Name              string `json:"name" binding:"required,min=1"`
	Description       string `json:"description" binding:"required,min=1"`
	Location          string `json:"location" binding:"required,min=1"`
	Start             *int64 `json:"start" binding:"required"`
	CloseRegistration *int64 `json:"close_registration" binding:"required"`
	MaxAttendees      *int   `json:"max_attendees" binding:"required"`
}

type updateEventRequest struct {
	Name              *string `json:"name" binding:"omitempty,min=1"`
	Description       *string `json:"description" binding:"omitempty,min=1"`
	Location          *string `json:"location" binding:"omitempty,min=1"`
	Start             *int64  `json:"start"`
	CloseRegistration *int64  `json:"close_registration"`
	MaxAttendees      *int    `json:"max_attendees"`
}

type searchQuery struct {
	Q      string `form:"q"`
	Status string `form:"status"`
	Limit  *int   `form:"limit"`
	Offset *int   `form:"offset"`
}

type creatorResponse struct {
	CreatorID uint   `json:"creator_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type askedByResponse struct {
	UserID    uint   `json:"user_id"`
	FirstName string `json:"first_name"`
}

type questionResponse struct {
	QuestionID uint            `json:"question_id"`
	Question   string          `json:"question"`
	Votes      int             `json:"votes"`
	AskedBy    askedByResponse `json:"asked_by"`
}

type eventResponse struct {
	EventID           uint            `json:"event_id"`
	Creator           creatorResponse `json:"creator"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Location          string          `json:"location"`
	Start             int64           `json:"start"`
	CloseRegistration int64           `json:"close_registration"`
	MaxAttendees      int             `json:"max_attendees"`
}

type eventDetailResponse struct {
	eventResponse
	DescriptionHTML string             `json:"description_html"`
	NumberAttending int                `json:"number_attending"`
	Questions       []questionResponse `json:"questions"`
	Attendees       *[]userResponse    `json:"attendees,omitempty"`
	IsAttending     *bool              `json:"isAttending,omitempty"`
}

func newEventResponse(e models.Event) eventResponse {
	return eventResponse{
		EventID: e.ID,
		Creator: creatorResponse{
			CreatorID: e.CreatorID,
			FirstName: e.Creator.FirstName,
			LastName:  e.Creator.LastName,
			Email:     e.Creator.Email,
		},
		Name:              e.Name,
		Description:       e.Description,
		Location:          e.Location,
		Start:             e.StartDate,
		CloseRegistration: e.CloseRegistration,
		MaxAttendees:      e.MaxAttendees,
	}
}

func newEventDetailResponse(d *services.EventDetail) eventDetailResponse {
	resp := eventDetailResponse{
		eventResponse:   newEventResponse(d.Event),
		DescriptionHTML: d.DescriptionHTML,
		NumberAttending: d.NumberAttending,
		Questions:       make([]questionResponse, 0, len(d.Questions)),
	}
	for _, q := range d.Questions {
		resp.Questions = append(resp.Questions, questionResponse{
			QuestionID: q.ID,
			Question:   q.Text,
			Votes:      q.Votes,
			AskedBy:    askedByResponse{UserID: q.AskedBy, FirstName: q.Asker.FirstName},
		})
	}

	if d.IsCreator {
		attendees := make([]userResponse, 0, len(d.Attendees))
		for _, u := range d.Attendees {
			attendees = append(attendees, userResponse{
				UserID:    u.ID,
				FirstName: u.FirstName,
				LastName:  u.LastName,
				Email:     u.Email,
			})
		}
		resp.Attendees = &attendees
	} else {
		attending := d.IsAttending
		resp.IsAttending = &attending
	}
	return resp
}

type EventHandler struct {
	events *services.EventService
}

func NewEventHandler(events *services.EventService) *EventHandler {
	return &EventHandler{events: events}
}

func (h *EventHandler) Create(c *gin.Context) {
	var req createEventRequest
	if !bindJSON(c, &req) {
		return
	}

	event, err := h.events.Create(c.Request.Context(), middleware.CurrentUserID(c), services.CreateEventParams{
		Name:              req.Name,
		Description:       req.Description,
		Location:          req.Location,
		Start:             *req.Start,
		CloseRegistration: *req.CloseRegistration,
		MaxAttendees:      *req.MaxAttendees,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, http.StatusCreated, gin.H{"event_id": event.ID})
}

func (h *EventHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "event")
	if !ok {
		return
	}
	detail, err := h.events.Get(c.Request.Context(), id, middleware.CurrentUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, http.StatusOK, newEventDetailResponse(detail))
}

func (h *EventHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "event")
	if !ok {
		return
	}
	var req updateEventRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.events.Update(c.Request.Context(), id, middleware.CurrentUserID(c), services.UpdateEventParams{
		Name:              req.Name,
		Description:       req.Description,
		Location:          req.Location,
		Start:             req.Start,
		CloseRegistration: req.CloseRegistration,
		MaxAttendees:      req.MaxAttendees,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{})
}

// Delete cancels the event; the row is kept with registration closed.
func (h *EventHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "event")
	if !ok {
		return
	}
	if err := h.events.Close(c.Request.Context(), id, middleware.CurrentUserID(c)); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{})
}

func (h *EventHandler) Register(c *gin.Context) {
	id, ok := pathID(c, "event")
	if !ok {
		return
	}
	if err := h.events.Register(c.Request.Context(), id, middleware.CurrentUserID(c)); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{})
}

func (h *EventHandler) Search(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		Fail(c, http.StatusBadRequest, "Limit and offset must be integers")
		return
	}

	events, err := h.events.Search(c.Request.Context(), services.SearchFilter{
		Query:    q.Q,
		Status:   q.Status,
		Limit:    q.Limit,
		Offset:   q.Offset,
		ViewerID: middleware.CurrentUserID(c),
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, newEventResponse(e))
	}
	Success(c, http.StatusOK, out)
}
