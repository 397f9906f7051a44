package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campushub/dissertation-api/internal/models"
	"github.com/campushub/dissertation-api/internal/service"
	appErrors "github.com/campushub/dissertation-api/pkg/errors"
	"github.com/campushub/dissertation-api/pkg/response"
)

// ProjectHandler exposes project lifecycle endpoints.
type ProjectHandler struct {
	service *service.ProjectService
}

// NewProjectHandler creates a new handler.
func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: svc}
}

// List godoc
// @Summary List projects
// @Description List projects visible to the current user
// @Tags Projects
// @Produce json
// @Param archived query bool false "Filter by archived state"
// @Param marker_id query string false "Only projects the given supervisor marks"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	filter := models.ProjectFilter{
		MarkerID: c.Query("marker_id"),
	}
	if raw := c.Query("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "archived must be a boolean"))
			return
		}
		filter.Archived = &archived
	}

	projects, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, projects, nil)
}

// Get godoc
// @Summary Get project detail
// @Description Fetch a project with its derived status, marks, meetings and final grade
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Submit godoc
// @Summary Submit dissertation
// @Description The owning student submits the dissertation, moving the project into marking
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id}/submit [post]
func (h *ProjectHandler) Submit(c *gin.Context) {
	project, err := h.service.Submit(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, project, nil)
}

// AssignSecondMarker godoc
// @Summary Assign second marker
// @Description Admin assigns a second marker, seeding a pending mark record for the open round
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body models.AssignSecondMarkerRequest true "Marker payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id}/second-marker [put]
func (h *ProjectHandler) AssignSecondMarker(c *gin.Context) {
	var req models.AssignSecondMarkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid marker payload"))
		return
	}

	project, err := h.service.AssignSecondMarker(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, project, nil)
}

// RemoveSecondMarker godoc
// @Summary Remove second marker
// @Description Admin clears the second marker assignment
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id}/second-marker [delete]
func (h *ProjectHandler) RemoveSecondMarker(c *gin.Context) {
	if err := h.service.RemoveSecondMarker(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Archive godoc
// @Summary Archive a project
// @Description Admin archives a project once marking is settled
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id}/archive [post]
func (h *ProjectHandler) Archive(c *gin.Context) {
	project, err := h.service.Archive(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, project, nil)
}
