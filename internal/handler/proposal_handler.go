package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushub/dissertation-api/internal/models"
	"github.com/campushub/dissertation-api/internal/service"
	appErrors "github.com/campushub/dissertation-api/pkg/errors"
	"github.com/campushub/dissertation-api/pkg/response"
)

// ProposalHandler exposes proposal and catalog endpoints.
type ProposalHandler struct {
	service *service.ProposalService
}

// NewProposalHandler creates a new handler.
func NewProposalHandler(svc *service.ProposalService) *ProposalHandler {
	return &ProposalHandler{service: svc}
}

// Submit godoc
// @Summary Submit a proposal
// @Description Submit a dissertation proposal, either custom or adopted from the catalog
// @Tags Proposals
// @Accept json
// @Produce json
// @Param payload body models.SubmitProposalRequest true "Proposal payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /proposals [post]
func (h *ProposalHandler) Submit(c *gin.Context) {
	var req models.SubmitProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid proposal payload"))
		return
	}

	proposal, err := h.service.Submit(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, proposal)
}

// List godoc
// @Summary List proposals
// @Description List proposals visible to the current user
// @Tags Proposals
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /proposals [get]
func (h *ProposalHandler) List(c *gin.Context) {
	filter := models.ProposalFilter{
		Status: models.ProposalStatus(c.Query("status")),
	}

	proposals, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, proposals, nil)
}

// Get godoc
// @Summary Get a proposal
// @Description Fetch one proposal by ID
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /proposals/{id} [get]
func (h *ProposalHandler) Get(c *gin.Context) {
	proposal, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, proposal, nil)
}

// Act godoc
// @Summary Accept or reject a proposal
// @Description The owning supervisor decides on a pending proposal. Accepting creates the project.
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body models.ProposalActionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /proposals/{id}/action [post]
func (h *ProposalHandler) Act(c *gin.Context) {
	var req models.ProposalActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid action payload"))
		return
	}

	proposal, project, err := h.service.Act(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := gin.H{"proposal": proposal}
	if project != nil {
		payload["project"] = project
	}

	response.JSON(c, http.StatusOK, payload, nil)
}

// Withdraw godoc
// @Summary Withdraw a proposal
// @Description The owning student (or an admin) withdraws a pending proposal
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /proposals/{id} [delete]
func (h *ProposalHandler) Withdraw(c *gin.Context) {
	if err := h.service.Withdraw(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// CreateCatalog godoc
// @Summary Publish a catalog proposal
// @Description Supervisors publish topic suggestions students can adopt
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body models.CreateCatalogProposalRequest true "Catalog entry"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /catalog [post]
func (h *ProposalHandler) CreateCatalog(c *gin.Context) {
	var req models.CreateCatalogProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid catalog payload"))
		return
	}

	entry, err := h.service.CreateCatalog(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, entry)
}

// ListCatalog godoc
// @Summary Browse the proposal catalog
// @Description Students see active entries only; staff see everything
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /catalog [get]
func (h *ProposalHandler) ListCatalog(c *gin.Context) {
	entries, err := h.service.ListCatalog(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, nil)
}

// RetireCatalog godoc
// @Summary Retire a catalog proposal
// @Description The owning supervisor or an admin removes an entry from circulation
// @Tags Catalog
// @Produce json
// @Param id path string true "Catalog entry ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /catalog/{id} [delete]
func (h *ProposalHandler) RetireCatalog(c *gin.Context) {
	if err := h.service.RetireCatalog(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
