package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushub/dissertation-api/internal/models"
	"github.com/campushub/dissertation-api/internal/service"
	appErrors "github.com/campushub/dissertation-api/pkg/errors"
	"github.com/campushub/dissertation-api/pkg/response"
)

// MarkHandler exposes marking endpoints.
type MarkHandler struct {
	service *service.MarkService
}

// NewMarkHandler creates a new handler.
func NewMarkHandler(svc *service.MarkService) *MarkHandler {
	return &MarkHandler{service: svc}
}

// Submit godoc
// @Summary Save or finalise a mark
// @Description The owning marker drafts or finalises a mark. Finalising may open another marking round.
// @Tags Marks
// @Accept json
// @Produce json
// @Param id path string true "Mark ID"
// @Param payload body models.SubmitMarkRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /marks/{id} [put]
func (h *MarkHandler) Submit(c *gin.Context) {
	var req models.SubmitMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid mark payload"))
		return
	}

	mark, err := h.service.Submit(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, mark, nil)
}

// ListForMarker godoc
// @Summary List own marking queue
// @Description List the mark records assigned to the current supervisor, pending first
// @Tags Marks
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /marks [get]
func (h *MarkHandler) ListForMarker(c *gin.Context) {
	marks, err := h.service.ListForMarker(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, marks, nil)
}

// ListByProject godoc
// @Summary List marks for a project
// @Description Staff see all rounds; students only once grades are confirmed
// @Tags Marks
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id}/marks [get]
func (h *MarkHandler) ListByProject(c *gin.Context) {
	marks, err := h.service.ListByProject(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, marks, nil)
}
