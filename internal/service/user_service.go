package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushub/dissertation-api/internal/models"
	"github.com/campushub/dissertation-api/internal/repository"
	appErrors "github.com/campushub/dissertation-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Create(ctx context.Context, user *models.User) error
	SetAdmin(ctx context.Context, id string, admin bool) error
	Deactivate(ctx context.Context, id string) error
	CountEncumbrances(ctx context.Context, userID string) (*repository.Encumbrances, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService provides account administration use cases.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// Create provisions a new account. Administrator only.
func (s *UserService) Create(ctx context.Context, actor *models.JWTClaims, req models.CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if !actor.IsAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "administrator rights required")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		IsSupervisor: req.IsSupervisor,
		IsAdmin:      req.IsAdmin,
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.audit(ctx, actor, user.ID, fmt.Sprintf(`{"created":%q}`, user.Email))
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("type", user.UserType()))
	return user, nil
}

// Get returns a single user. Administrators see anyone; others only themselves.
func (s *UserService) Get(ctx context.Context, actor *models.JWTClaims, userID string) (*models.User, error) {
	if !actor.IsAdmin && actor.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to this user")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// List returns users matching the filter with pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// SetAdmin toggles administrator rights. Administrators cannot demote
// themselves.
func (s *UserService) SetAdmin(ctx context.Context, actor *models.JWTClaims, userID string, admin bool) (*models.User, error) {
	if !actor.IsAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "administrator rights required")
	}
	if actor.UserID == userID && !admin {
		return nil, appErrors.Clone(appErrors.ErrInvalidAction, "cannot revoke your own administrator rights")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := s.repo.SetAdmin(ctx, userID, admin); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update admin flag")
	}
	user.IsAdmin = admin

	s.audit(ctx, actor, userID, fmt.Sprintf(`{"is_admin":%t}`, admin))
	return user, nil
}

// Deactivate disables an account. A user with pending proposals, ongoing
// projects or unfinalised marks cannot be deactivated.
func (s *UserService) Deactivate(ctx context.Context, actor *models.JWTClaims, userID string) error {
	if !actor.IsAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "administrator rights required")
	}
	if actor.UserID == userID {
		return appErrors.Clone(appErrors.ErrInvalidAction, "cannot deactivate your own account")
	}

	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	enc, err := s.repo.CountEncumbrances(ctx, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check user activity")
	}
	if enc.Any() {
		return appErrors.Clone(appErrors.ErrUserEncumbered,
			fmt.Sprintf("user has %d pending proposals, %d ongoing projects and %d unfinalised marks",
				enc.PendingProposals, enc.OngoingProjects, enc.UnfinalisedMarks))
	}

	if err := s.repo.Deactivate(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens for deactivated user", zap.Error(err))
	}

	s.audit(ctx, actor, userID, `{"active":false}`)
	s.logger.Info("user deactivated", zap.String("user_id", userID))
	return nil
}

func (s *UserService) audit(ctx context.Context, actor *models.JWTClaims, resourceID, payload string) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionUserAdmin,
		Resource:   "users",
		ResourceID: &resourceID,
		NewValues:  []byte(payload),
	}); err != nil {
		s.logger.Warn("failed to record user admin audit log", zap.Error(err))
	}
}
