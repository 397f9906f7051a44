package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushub/dissertation-api/internal/models"
	appErrors "github.com/campushub/dissertation-api/pkg/errors"
)

type meetingRepository interface {
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
	ListByProject(ctx context.Context, projectID string) ([]models.Meeting, error)
	Create(ctx context.Context, meeting *models.Meeting) error
	Update(ctx context.Context, meeting *models.Meeting) error
}

// MeetingService manages supervision meetings attached to projects.
type MeetingService struct {
	repo      meetingRepository
	projects  markProjectReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMeetingService constructs a MeetingService.
func NewMeetingService(repo meetingRepository, projects markProjectReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MeetingService{repo: repo, projects: projects, cache: cache, validator: validate, logger: logger}
}

// Create schedules a meeting. Only the project supervisor may schedule.
func (s *MeetingService) Create(ctx context.Context, actor *models.JWTClaims, projectID string, req models.CreateMeetingRequest) (*models.Meeting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting payload")
	}

	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.SupervisorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the project supervisor may schedule meetings")
	}
	if project.IsArchived() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "project is archived")
	}
	if req.EndsAt != nil && !req.EndsAt.After(req.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "meeting must end after it starts")
	}

	meeting := &models.Meeting{
		ProjectID: projectID,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		Location:  req.Location,
	}
	if err := s.repo.Create(ctx, meeting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create meeting")
	}

	s.invalidateProject(ctx, projectID)
	return meeting, nil
}

// Update records attendance and outcomes. The project supervisor or an
// administrator may update.
func (s *MeetingService) Update(ctx context.Context, actor *models.JWTClaims, meetingID string, req models.UpdateMeetingRequest) (*models.Meeting, error) {
	meeting, err := s.repo.FindByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meeting")
	}

	project, err := s.loadProject(ctx, meeting.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.SupervisorID != actor.UserID && !actor.IsAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the project supervisor may update meetings")
	}

	if req.StartsAt != nil {
		meeting.StartsAt = *req.StartsAt
	}
	if req.EndsAt != nil {
		meeting.EndsAt = req.EndsAt
	}
	if req.Location != nil {
		meeting.Location = req.Location
	}
	if req.Attended != nil {
		meeting.Attended = *req.Attended
	}
	if req.OutcomeNotes != nil {
		meeting.OutcomeNotes = req.OutcomeNotes
	}
	if meeting.EndsAt != nil && !meeting.EndsAt.After(meeting.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "meeting must end after it starts")
	}

	if err := s.repo.Update(ctx, meeting); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update meeting")
	}

	s.invalidateProject(ctx, meeting.ProjectID)
	return meeting, nil
}

// ListByProject returns a project's meetings for its participants.
func (s *MeetingService) ListByProject(ctx context.Context, actor *models.JWTClaims, projectID string) ([]models.Meeting, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	allowed := actor.IsAdmin ||
		project.StudentID == actor.UserID ||
		project.SupervisorID == actor.UserID ||
		(project.SecondMarkerID != nil && *project.SecondMarkerID == actor.UserID)
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to this project")
	}

	meetings, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list meetings")
	}
	return meetings, nil
}

func (s *MeetingService) loadProject(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return project, nil
}

func (s *MeetingService) invalidateProject(ctx context.Context, projectID string) {
	if err := s.cache.Invalidate(ctx, projectDetailCacheKey(projectID)); err != nil {
		s.logger.Warn("failed to invalidate project cache", zap.String("project_id", projectID), zap.Error(err))
	}
}
