package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushub/dissertation-api/internal/models"
	appErrors "github.com/campushub/dissertation-api/pkg/errors"
)

type proposalRepository interface {
	FindByID(ctx context.Context, id string) (*models.Proposal, error)
	List(ctx context.Context, filter models.ProposalFilter) ([]models.Proposal, error)
	HasPending(ctx context.Context, studentID string) (bool, error)
	Create(ctx context.Context, proposal *models.Proposal) error
	Accept(ctx context.Context, proposal *models.Proposal, project *models.Project, supervisorMark *models.ProjectMark) error
	Reject(ctx context.Context, id string, rejectedAt time.Time) error
	Delete(ctx context.Context, id string) error
	FindCatalogByID(ctx context.Context, id string) (*models.CatalogProposal, error)
	ListCatalog(ctx context.Context, onlyActive bool) ([]models.CatalogProposal, error)
	CreateCatalog(ctx context.Context, entry *models.CatalogProposal) error
	RetireCatalog(ctx context.Context, id string) error
}

type proposalUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ProposalService orchestrates the proposal lifecycle from submission through
// the supervisor's decision.
type ProposalService struct {
	repo      proposalRepository
	users     proposalUserRepository
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProposalService constructs a ProposalService.
func NewProposalService(repo proposalRepository, users proposalUserRepository, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ProposalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProposalService{repo: repo, users: users, metrics: metrics, validator: validate, logger: logger}
}

// Submit creates a proposal on behalf of the acting student. The proposal
// either adopts an active catalog entry or names a supervisor directly.
func (s *ProposalService) Submit(ctx context.Context, actor *models.JWTClaims, req models.SubmitProposalRequest) (*models.Proposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposal payload")
	}
	if !actor.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrInvalidStudent, "only students may submit proposals")
	}

	pending, err := s.repo.HasPending(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending proposals")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrMaxProposalsReached, "a pending proposal already exists")
	}

	proposal := &models.Proposal{
		Title:       req.Title,
		Description: req.Description,
		StudentID:   actor.UserID,
	}

	if req.CatalogProposalID != nil {
		entry, err := s.repo.FindCatalogByID(ctx, *req.CatalogProposalID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "catalog proposal not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catalog proposal")
		}
		if !entry.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, "catalog proposal is no longer offered")
		}
		proposal.Title = entry.Title
		proposal.Description = entry.Description
		proposal.SupervisorID = entry.SupervisorID
		proposal.CatalogProposalID = &entry.ID
	} else {
		supervisor, err := s.users.FindByID(ctx, req.SupervisorID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrInvalidSupervisor, "supervisor not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
		}
		if !supervisor.Active || !supervisor.IsSupervisor {
			return nil, appErrors.Clone(appErrors.ErrInvalidSupervisor, "user is not an active supervisor")
		}
		proposal.SupervisorID = supervisor.ID
	}

	if err := s.repo.Create(ctx, proposal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create proposal")
	}

	s.metrics.RecordProposalSubmitted()
	s.logger.Info("proposal submitted",
		zap.String("proposal_id", proposal.ID),
		zap.String("student_id", proposal.StudentID),
		zap.String("supervisor_id", proposal.SupervisorID))
	return proposal, nil
}

// Act applies the supervisor's decision to a pending proposal. Accepting
// creates the project and the supervisor's first mark record atomically; the
// returned project is nil for a rejection.
func (s *ProposalService) Act(ctx context.Context, actor *models.JWTClaims, proposalID string, req models.ProposalActionRequest) (*models.Proposal, *models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid action payload")
	}

	proposal, err := s.repo.FindByID(ctx, proposalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}

	if proposal.SupervisorID != actor.UserID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only the named supervisor may act on this proposal")
	}
	if proposal.Status() != models.ProposalPending {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidState, "proposal has already been decided")
	}

	switch req.Action {
	case "accept":
		project := &models.Project{
			ProposalID:   proposal.ID,
			StudentID:    proposal.StudentID,
			SupervisorID: proposal.SupervisorID,
		}
		supervisorMark := &models.ProjectMark{
			MarkerID: proposal.SupervisorID,
			Round:    1,
		}
		if err := s.repo.Accept(ctx, proposal, project, supervisorMark); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, appErrors.Clone(appErrors.ErrInvalidState, "proposal has already been decided")
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept proposal")
		}
		s.metrics.RecordProposalAccepted()
		s.logger.Info("proposal accepted",
			zap.String("proposal_id", proposal.ID),
			zap.String("project_id", project.ID))
		return proposal, project, nil
	case "reject":
		now := time.Now().UTC()
		if err := s.repo.Reject(ctx, proposal.ID, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, appErrors.Clone(appErrors.ErrInvalidState, "proposal has already been decided")
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject proposal")
		}
		proposal.RejectedAt = &now
		s.logger.Info("proposal rejected", zap.String("proposal_id", proposal.ID))
		return proposal, nil, nil
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidAction, "action must be accept or reject")
	}
}

// Withdraw removes a pending proposal. Students may withdraw their own;
// administrators may withdraw any.
func (s *ProposalService) Withdraw(ctx context.Context, actor *models.JWTClaims, proposalID string) error {
	proposal, err := s.repo.FindByID(ctx, proposalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}

	if proposal.StudentID != actor.UserID && !actor.IsAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "proposal belongs to another student")
	}
	if proposal.Status() != models.ProposalPending {
		return appErrors.Clone(appErrors.ErrInvalidState, "only pending proposals may be withdrawn")
	}

	if err := s.repo.Delete(ctx, proposalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidState, "proposal has already been decided")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw proposal")
	}
	return nil
}

// Get returns a single proposal visible to the actor.
func (s *ProposalService) Get(ctx context.Context, actor *models.JWTClaims, proposalID string) (*models.Proposal, error) {
	proposal, err := s.repo.FindByID(ctx, proposalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}
	if proposal.StudentID != actor.UserID && proposal.SupervisorID != actor.UserID && !actor.IsAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to this proposal")
	}
	return proposal, nil
}

// List returns proposals scoped to the actor's role.
func (s *ProposalService) List(ctx context.Context, actor *models.JWTClaims, filter models.ProposalFilter) ([]models.Proposal, error) {
	switch {
	case actor.IsAdmin:
	case actor.IsSupervisor:
		filter.SupervisorID = actor.UserID
	default:
		filter.StudentID = actor.UserID
	}

	proposals, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list proposals")
	}
	return proposals, nil
}

// CreateCatalog publishes a catalog entry owned by the acting supervisor.
func (s *ProposalService) CreateCatalog(ctx context.Context, actor *models.JWTClaims, req models.CreateCatalogProposalRequest) (*models.CatalogProposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid catalog payload")
	}
	if !actor.IsSupervisor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only supervisors may publish catalog proposals")
	}

	entry := &models.CatalogProposal{
		Title:        req.Title,
		Description:  req.Description,
		SupervisorID: actor.UserID,
		Active:       true,
	}
	if err := s.repo.CreateCatalog(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create catalog proposal")
	}
	return entry, nil
}

// ListCatalog returns catalog entries. Students only see active offers.
func (s *ProposalService) ListCatalog(ctx context.Context, actor *models.JWTClaims) ([]models.CatalogProposal, error) {
	entries, err := s.repo.ListCatalog(ctx, actor.IsStudent())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list catalog proposals")
	}
	return entries, nil
}

// RetireCatalog withdraws a catalog entry from the offer list.
func (s *ProposalService) RetireCatalog(ctx context.Context, actor *models.JWTClaims, entryID string) error {
	entry, err := s.repo.FindCatalogByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "catalog proposal not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catalog proposal")
	}
	if entry.SupervisorID != actor.UserID && !actor.IsAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "catalog proposal belongs to another supervisor")
	}
	if err := s.repo.RetireCatalog(ctx, entryID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire catalog proposal")
	}
	return nil
}
