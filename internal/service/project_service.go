package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushub/dissertation-api/internal/models"
	"github.com/campushub/dissertation-api/internal/reconcile"
	appErrors "github.com/campushub/dissertation-api/pkg/errors"
)

type projectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, error)
	SetSubmitted(ctx context.Context, id string, submittedAt time.Time) error
	AssignSecondMarker(ctx context.Context, projectID, markerID string, round int) error
	ClearSecondMarker(ctx context.Context, projectID string) error
	SetArchived(ctx context.Context, id string, archivedAt time.Time) error
}

type projectMarkReader interface {
	ListByProject(ctx context.Context, projectID string) ([]models.ProjectMark, error)
}

type projectMeetingReader interface {
	ListByProject(ctx context.Context, projectID string) ([]models.Meeting, error)
}

type projectUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ProjectService drives the project lifecycle from creation through archiving.
// Status and final grade are never stored; they are derived from the mark
// history on every read.
type ProjectService struct {
	repo      projectRepository
	marks     projectMarkReader
	meetings  projectMeetingReader
	users     projectUserRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewProjectService constructs a ProjectService.
func NewProjectService(repo projectRepository, marks projectMarkReader, meetings projectMeetingReader, users projectUserRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProjectService{
		repo:      repo,
		marks:     marks,
		meetings:  meetings,
		users:     users,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cacheTTL:  cacheTTL,
	}
}

func projectDetailCacheKey(projectID string) string {
	return fmt.Sprintf("project:detail:%s", projectID)
}

// Get returns the derived read model for a project.
func (s *ProjectService) Get(ctx context.Context, actor *models.JWTClaims, projectID string) (*models.ProjectDetail, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeProjectAccess(actor, project); err != nil {
		return nil, err
	}

	key := projectDetailCacheKey(projectID)
	var cached models.ProjectDetail
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return s.redactDetail(actor, &cached), nil
	}

	detail, err := s.buildDetail(ctx, project)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, detail, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache project detail", zap.String("project_id", projectID), zap.Error(err))
	}

	return s.redactDetail(actor, detail), nil
}

// List returns projects visible to the actor.
func (s *ProjectService) List(ctx context.Context, actor *models.JWTClaims, filter models.ProjectFilter) ([]models.Project, error) {
	switch {
	case actor.IsAdmin:
	case actor.IsSupervisor:
		if filter.MarkerID == actor.UserID {
			filter.StudentID = ""
			filter.SupervisorID = ""
		} else {
			filter.MarkerID = ""
			filter.SupervisorID = actor.UserID
		}
	default:
		filter.MarkerID = ""
		filter.SupervisorID = ""
		filter.StudentID = actor.UserID
	}

	projects, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	return projects, nil
}

// Submit hands the dissertation in. Only the owning student may submit, and
// only once.
func (s *ProjectService) Submit(ctx context.Context, actor *models.JWTClaims, projectID string) (*models.Project, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.StudentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "project belongs to another student")
	}
	if project.IsArchived() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "project is archived")
	}

	now := time.Now().UTC()
	if err := s.repo.SetSubmitted(ctx, projectID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "project has already been submitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit project")
	}
	project.SubmittedAt = &now

	s.invalidateDetail(ctx, projectID)
	s.metrics.RecordProjectSubmitted()
	s.logger.Info("project submitted", zap.String("project_id", projectID), zap.String("student_id", actor.UserID))
	return project, nil
}

// AssignSecondMarker attaches an additional marker and seeds their pending
// mark record. The marker must be an active supervisor distinct from both the
// project supervisor and the student.
func (s *ProjectService) AssignSecondMarker(ctx context.Context, actor *models.JWTClaims, projectID string, req models.AssignSecondMarkerRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if !actor.IsAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "administrator rights required")
	}

	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.IsArchived() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "project is archived")
	}
	if project.SecondMarkerID != nil && *project.SecondMarkerID != req.MarkerID {
		return nil, appErrors.Clone(appErrors.ErrInvalidAssignment, "project already has a second marker")
	}
	if req.MarkerID == project.SupervisorID || req.MarkerID == project.StudentID {
		return nil, appErrors.Clone(appErrors.ErrInvalidAssignment, "second marker must be independent of the project")
	}

	marker, err := s.users.FindByID(ctx, req.MarkerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidSupervisor, "marker not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marker")
	}
	if !marker.Active || !marker.IsSupervisor {
		return nil, appErrors.Clone(appErrors.ErrInvalidSupervisor, "user is not an active supervisor")
	}

	marks, err := s.marks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
	}
	round := 1
	for _, m := range marks {
		if m.Round > round {
			round = m.Round
		}
	}

	if err := s.repo.AssignSecondMarker(ctx, projectID, req.MarkerID, round); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign second marker")
	}
	project.SecondMarkerID = &req.MarkerID

	s.invalidateDetail(ctx, projectID)
	s.logger.Info("second marker assigned",
		zap.String("project_id", projectID),
		zap.String("marker_id", req.MarkerID),
		zap.Int("round", round))
	return project, nil
}

// RemoveSecondMarker detaches the second marker reference. Removing one that
// is not set is a no-op.
func (s *ProjectService) RemoveSecondMarker(ctx context.Context, actor *models.JWTClaims, projectID string) error {
	if !actor.IsAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "administrator rights required")
	}
	if _, err := s.loadProject(ctx, projectID); err != nil {
		return err
	}
	if err := s.repo.ClearSecondMarker(ctx, projectID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove second marker")
	}
	s.invalidateDetail(ctx, projectID)
	return nil
}

// Archive closes the project. A submitted project cannot be archived while
// marking is still in flight.
func (s *ProjectService) Archive(ctx context.Context, actor *models.JWTClaims, projectID string) (*models.Project, error) {
	if !actor.IsAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "administrator rights required")
	}

	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	marks, err := s.marks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
	}

	status := reconcile.Status(project, marks)
	if status == models.ProjectSubmitted || status == models.ProjectMarking {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "cannot archive a project while marking is in progress")
	}

	now := time.Now().UTC()
	if err := s.repo.SetArchived(ctx, projectID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "project is already archived")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive project")
	}
	project.ArchivedAt = &now

	s.invalidateDetail(ctx, projectID)
	s.metrics.RecordProjectArchived()
	s.logger.Info("project archived", zap.String("project_id", projectID))
	return project, nil
}

func (s *ProjectService) loadProject(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return project, nil
}

func (s *ProjectService) authorizeProjectAccess(actor *models.JWTClaims, project *models.Project) error {
	if actor.IsAdmin {
		return nil
	}
	if project.StudentID == actor.UserID || project.SupervisorID == actor.UserID {
		return nil
	}
	if project.SecondMarkerID != nil && *project.SecondMarkerID == actor.UserID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "no access to this project")
}

func (s *ProjectService) buildDetail(ctx context.Context, project *models.Project) (*models.ProjectDetail, error) {
	marks, err := s.marks.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
	}
	meetings, err := s.meetings.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meetings")
	}

	detail := &models.ProjectDetail{
		Project:  *project,
		Status:   reconcile.Status(project, marks),
		Marks:    marks,
		Meetings: meetings,
	}
	if grade, err := reconcile.FinalGrade(marks); err == nil {
		detail.FinalGrade = &grade
	}
	return detail, nil
}

// redactDetail strips mark records from the student's view until the grade is
// confirmed or the project archived.
func (s *ProjectService) redactDetail(actor *models.JWTClaims, detail *models.ProjectDetail) *models.ProjectDetail {
	if !actor.IsStudent() {
		return detail
	}
	if detail.Status == models.ProjectMarksConfirmed || detail.Status == models.ProjectArchived {
		return detail
	}
	redacted := *detail
	redacted.Marks = nil
	redacted.FinalGrade = nil
	return &redacted
}

func (s *ProjectService) invalidateDetail(ctx context.Context, projectID string) {
	if err := s.cache.Invalidate(ctx, projectDetailCacheKey(projectID)); err != nil {
		s.logger.Warn("failed to invalidate project cache", zap.String("project_id", projectID), zap.Error(err))
	}
}
