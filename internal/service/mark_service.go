package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushub/dissertation-api/internal/models"
	"github.com/campushub/dissertation-api/internal/reconcile"
	"github.com/campushub/dissertation-api/internal/repository"
	appErrors "github.com/campushub/dissertation-api/pkg/errors"
)

type markRepository interface {
	FindByID(ctx context.Context, id string) (*models.ProjectMark, error)
	ListByProject(ctx context.Context, projectID string) ([]models.ProjectMark, error)
	ListByMarker(ctx context.Context, markerID string) ([]models.ProjectMark, error)
	SaveDraft(ctx context.Context, id string, grade *float64, feedback *string) error
	FinalizeAndSeed(ctx context.Context, mark *models.ProjectMark, round int, seedMarkerIDs []string) error
}

type markProjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
}

// MarkService handles mark drafting and finalisation. Finalising a mark runs
// reconciliation: if the finalised set is discordant a fresh round is seeded
// for the markers of the latest pair, atomically with the finalisation.
type MarkService struct {
	repo      markRepository
	projects  markProjectReader
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMarkService constructs a MarkService.
func NewMarkService(repo markRepository, projects markProjectReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *MarkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MarkService{repo: repo, projects: projects, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// Submit updates a mark record, either as a draft or finalising it. Both of
// the project's markers may act on either record.
func (s *MarkService) Submit(ctx context.Context, actor *models.JWTClaims, markID string, req models.SubmitMarkRequest) (*models.ProjectMark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark payload")
	}

	mark, err := s.repo.FindByID(ctx, markID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mark record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mark")
	}

	project, err := s.projects.FindByID(ctx, mark.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	isMarker := project.SupervisorID == actor.UserID ||
		(project.SecondMarkerID != nil && *project.SecondMarkerID == actor.UserID)
	if !isMarker {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the project's markers may submit marks")
	}
	if mark.Finalised {
		return nil, appErrors.Clone(appErrors.ErrAlreadyFinalised, "mark has already been finalised")
	}

	marks, err := s.repo.ListByProject(ctx, mark.ProjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project marks")
	}

	status := reconcile.Status(project, marks)
	if status != models.ProjectSubmitted && status != models.ProjectMarking {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "project is not open for marking")
	}

	if !req.Finalise {
		if err := s.repo.SaveDraft(ctx, markID, req.Grade, req.Feedback); err != nil {
			if errors.Is(err, repository.ErrMarkAlreadyFinalised) {
				return nil, appErrors.Clone(appErrors.ErrAlreadyFinalised, "mark has already been finalised")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save mark draft")
		}
		mark.Grade = req.Grade
		mark.Feedback = req.Feedback
		s.invalidateProject(ctx, mark.ProjectID)
		return mark, nil
	}

	if req.Grade == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a grade is required to finalise a mark")
	}

	mark.Grade = req.Grade
	mark.Feedback = req.Feedback

	// Reconcile against the mark set as it will look once this record is
	// finalised, so the seeding decision and the write land together.
	projected := make([]models.ProjectMark, len(marks))
	copy(projected, marks)
	for i := range projected {
		if projected[i].ID == mark.ID {
			projected[i].Grade = req.Grade
			projected[i].Feedback = req.Feedback
			projected[i].Finalised = true
		}
	}
	round, seeds := reconcile.NextRoundSeeds(projected)

	if err := s.repo.FinalizeAndSeed(ctx, mark, round, seeds); err != nil {
		if errors.Is(err, repository.ErrMarkAlreadyFinalised) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyFinalised, "mark has already been finalised")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalise mark")
	}

	s.metrics.RecordMarkFinalised()
	if len(seeds) > 0 {
		s.metrics.RecordRoundOpened()
		s.logger.Info("marking round opened",
			zap.String("project_id", mark.ProjectID),
			zap.Int("round", round),
			zap.Strings("markers", seeds))
	} else if grade, err := reconcile.FinalGrade(projected); err == nil {
		s.metrics.RecordGradeConfirmed()
		s.logger.Info("final grade confirmed",
			zap.String("project_id", mark.ProjectID),
			zap.Float64("grade", grade))
	}

	s.invalidateProject(ctx, mark.ProjectID)
	return mark, nil
}

// ListForMarker returns the actor's mark records across projects.
func (s *MarkService) ListForMarker(ctx context.Context, actor *models.JWTClaims) ([]models.ProjectMark, error) {
	marks, err := s.repo.ListByMarker(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marks")
	}
	return marks, nil
}

// ListByProject returns a project's mark records. Students only see them once
// the final grade is confirmed or the project archived.
func (s *MarkService) ListByProject(ctx context.Context, actor *models.JWTClaims, projectID string) ([]models.ProjectMark, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	isMarker := project.SupervisorID == actor.UserID ||
		(project.SecondMarkerID != nil && *project.SecondMarkerID == actor.UserID)
	if !actor.IsAdmin && !isMarker && project.StudentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to this project")
	}

	marks, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marks")
	}

	if project.StudentID == actor.UserID && !actor.IsAdmin && !isMarker {
		status := reconcile.Status(project, marks)
		if status != models.ProjectMarksConfirmed && status != models.ProjectArchived {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "marks are not released yet")
		}
	}
	return marks, nil
}

func (s *MarkService) invalidateProject(ctx context.Context, projectID string) {
	if err := s.cache.Invalidate(ctx, projectDetailCacheKey(projectID)); err != nil {
		s.logger.Warn("failed to invalidate project cache", zap.String("project_id", projectID), zap.Error(err))
	}
}
