package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushub/dissertation-api/internal/models"
	"github.com/campushub/dissertation-api/internal/reconcile"
	appErrors "github.com/campushub/dissertation-api/pkg/errors"
	"github.com/campushub/dissertation-api/pkg/export"
	"github.com/campushub/dissertation-api/pkg/storage"
)

type exportProjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, error)
}

type exportUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes report export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string              `json:"-"`
	Token        string              `json:"token"`
	URL          string              `json:"url"`
	Format       models.ReportFormat `json:"format"`
	ExpiresAt    time.Time           `json:"expires_at"`
}

// ExportService renders marks reports and stores them behind signed URLs.
type ExportService struct {
	projects exportProjectRepository
	marks    projectMarkReader
	users    exportUserRepository
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(projects exportProjectRepository, marks projectMarkReader, users exportUserRepository, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		projects: projects,
		marks:    marks,
		users:    users,
		storage:  store,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

var projectReportHeaders = []string{"Round", "Marker", "Grade", "Feedback", "Finalised", "Submitted At"}

// GenerateProjectReport renders the mark history of a single project.
func (s *ExportService) GenerateProjectReport(ctx context.Context, actor *models.JWTClaims, projectID string, format models.ReportFormat) (*ExportResult, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
	}
	isMarker := project.SupervisorID == actor.UserID ||
		(project.SecondMarkerID != nil && *project.SecondMarkerID == actor.UserID)
	if !actor.IsAdmin && !isMarker {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to this project's report")
	}

	marks, err := s.marks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
	}

	rows := make([]map[string]string, 0, len(marks))
	for _, m := range marks {
		rows = append(rows, map[string]string{
			"Round":        fmt.Sprintf("%d", m.Round),
			"Marker":       s.userName(ctx, m.MarkerID),
			"Grade":        formatGrade(m.Grade),
			"Feedback":     derefString(m.Feedback),
			"Finalised":    fmt.Sprintf("%t", m.Finalised),
			"Submitted At": formatTime(m.SubmittedAt),
		})
	}
	dataset := export.Dataset{Headers: projectReportHeaders, Rows: rows}

	title := fmt.Sprintf("Marks Report %s", projectID)
	return s.render(dataset, title, fmt.Sprintf("project-%s", projectID), format)
}

var cohortReportHeaders = []string{"Project", "Student", "Supervisor", "Status", "Final Grade"}

// GenerateCohortReport renders the status of every project. Administrator only.
func (s *ExportService) GenerateCohortReport(ctx context.Context, actor *models.JWTClaims, format models.ReportFormat) (*ExportResult, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if !actor.IsAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "administrator rights required")
	}

	projects, err := s.projects.List(ctx, models.ProjectFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}

	rows := make([]map[string]string, 0, len(projects))
	for i := range projects {
		project := &projects[i]
		marks, err := s.marks.ListByProject(ctx, project.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
		}
		row := map[string]string{
			"Project":    project.ID,
			"Student":    s.userName(ctx, project.StudentID),
			"Supervisor": s.userName(ctx, project.SupervisorID),
			"Status":     string(reconcile.Status(project, marks)),
		}
		if grade, err := reconcile.FinalGrade(marks); err == nil {
			row["Final Grade"] = fmt.Sprintf("%.1f", grade)
		}
		rows = append(rows, row)
	}
	dataset := export.Dataset{Headers: cohortReportHeaders, Rows: rows}

	return s.render(dataset, "Cohort Marks Report", "cohort", format)
}

// ParseToken validates a download token and returns the stored path.
func (s *ExportService) ParseToken(token string) (reportID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// StartCleanup periodically removes expired report files until ctx is done.
func (s *ExportService) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
				if err != nil {
					s.logger.Warn("report cleanup failed", zap.Error(err))
					continue
				}
				if len(deleted) > 0 {
					s.logger.Info("expired reports removed", zap.Int("count", len(deleted)))
				}
			}
		}
	}()
}

func (s *ExportService) render(dataset export.Dataset, title, slug string, format models.ReportFormat) (*ExportResult, error) {
	var payload []byte
	var err error
	switch format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	reportID := uuid.NewString()
	filename := fmt.Sprintf("reports/%s-%s.%s", slug, time.Now().UTC().Format("20060102-150405"), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate(reportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign report url")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/reports/download/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *ExportService) userName(ctx context.Context, userID string) string {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return userID
	}
	return user.FullName
}

func formatGrade(grade *float64) string {
	if grade == nil {
		return ""
	}
	return fmt.Sprintf("%.1f", *grade)
}

func formatTime(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
