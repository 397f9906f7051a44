package handler

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campushub/dissertation-api/internal/models"
	"github.com/campushub/dissertation-api/internal/service"
	appErrors "github.com/campushub/dissertation-api/pkg/errors"
	"github.com/campushub/dissertation-api/pkg/response"
)

// ReportHandler exposes report generation and download endpoints.
type ReportHandler struct {
	service *service.ExportService
	logger  *zap.Logger
}

// NewReportHandler creates a new handler.
func NewReportHandler(svc *service.ExportService, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{service: svc, logger: logger}
}

// GenerateProjectReport godoc
// @Summary Export a project marks report
// @Description Renders the mark history of one project as CSV or PDF and returns a signed download URL
// @Tags Reports
// @Produce json
// @Param id path string true "Project ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id}/reports [post]
func (h *ReportHandler) GenerateProjectReport(c *gin.Context) {
	format := models.ReportFormat(c.DefaultQuery("format", "csv"))

	result, err := h.service.GenerateProjectReport(c.Request.Context(), claimsFromContext(c), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// GenerateCohortReport godoc
// @Summary Export a cohort report
// @Description Renders the status and final grade of every project. Administrator only.
// @Tags Reports
// @Produce json
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/cohort [post]
func (h *ReportHandler) GenerateCohortReport(c *gin.Context) {
	format := models.ReportFormat(c.DefaultQuery("format", "csv"))

	result, err := h.service.GenerateCohortReport(c.Request.Context(), claimsFromContext(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a generated report
// @Description Streams the report file referenced by a signed token
// @Tags Reports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/download/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	reportID, relPath, _, err := h.service.ParseToken(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token"))
		return
	}

	file, err := h.service.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "report no longer available"))
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := "application/octet-stream"
	switch filepath.Ext(relPath) {
	case ".csv":
		contentType = "text/csv"
	case ".pdf":
		contentType = "application/pdf"
	}

	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(relPath))
	c.Header("Content-Type", contentType)
	if _, err := io.Copy(c.Writer, file); err != nil {
		h.logger.Warn("report download interrupted", zap.String("report_id", reportID), zap.Error(err))
	}
}
