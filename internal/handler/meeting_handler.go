package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushub/dissertation-api/internal/models"
	"github.com/campushub/dissertation-api/internal/service"
	appErrors "github.com/campushub/dissertation-api/pkg/errors"
	"github.com/campushub/dissertation-api/pkg/response"
)

// MeetingHandler exposes supervision meeting endpoints.
type MeetingHandler struct {
	service *service.MeetingService
}

// NewMeetingHandler creates a new handler.
func NewMeetingHandler(svc *service.MeetingService) *MeetingHandler {
	return &MeetingHandler{service: svc}
}

// Create godoc
// @Summary Record a meeting
// @Description The project supervisor records a supervision meeting
// @Tags Meetings
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body models.CreateMeetingRequest true "Meeting payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id}/meetings [post]
func (h *MeetingHandler) Create(c *gin.Context) {
	var req models.CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid meeting payload"))
		return
	}

	meeting, err := h.service.Create(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, meeting)
}

// Update godoc
// @Summary Update a meeting
// @Description The supervisor or an admin amends a recorded meeting
// @Tags Meetings
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param payload body models.UpdateMeetingRequest true "Meeting payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /meetings/{id} [put]
func (h *MeetingHandler) Update(c *gin.Context) {
	var req models.UpdateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid meeting payload"))
		return
	}

	meeting, err := h.service.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, meeting, nil)
}

// ListByProject godoc
// @Summary List meetings for a project
// @Description List meetings in chronological order, visible to project participants
// @Tags Meetings
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id}/meetings [get]
func (h *MeetingHandler) ListByProject(c *gin.Context) {
	meetings, err := h.service.ListByProject(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, meetings, nil)
}
