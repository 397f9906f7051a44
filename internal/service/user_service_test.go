package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushub/dissertation-api/internal/models"
	"github.com/campushub/dissertation-api/internal/repository"
	appErrors "github.com/campushub/dissertation-api/pkg/errors"
)

type mockUserRepo struct {
	users        map[string]*models.User
	encumbrances repository.Encumbrances

	deactivatedID string
	adminSet      map[string]bool
	revokedUserID string
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "user-new"
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) SetAdmin(ctx context.Context, id string, admin bool) error {
	if m.adminSet == nil {
		m.adminSet = make(map[string]bool)
	}
	m.adminSet[id] = admin
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivatedID = id
	m.users[id].Active = false
	return nil
}

func (m *mockUserRepo) CountEncumbrances(ctx context.Context, userID string) (*repository.Encumbrances, error) {
	enc := m.encumbrances
	return &enc, nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUserID = userID
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return nil
}

func newUserService(repo *mockUserRepo) *UserService {
	return NewUserService(repo, validator.New(), zap.NewNop())
}

func TestUserCreate(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newUserService(repo)

	user, err := svc.Create(context.Background(), claimsFor("adm-1", false, true), models.CreateUserRequest{
		Email: "new@example.com", Password: "secret1", FullName: "New User", IsSupervisor: true,
	})
	require.NoError(t, err)
	assert.True(t, user.Active)
	assert.True(t, user.IsSupervisor)
	assert.NotEqual(t, "secret1", user.PasswordHash)
}

func TestUserCreateRequiresAdmin(t *testing.T) {
	svc := newUserService(&mockUserRepo{})

	_, err := svc.Create(context.Background(), claimsFor("sup-1", true, false), models.CreateUserRequest{
		Email: "new@example.com", Password: "secret1", FullName: "New User",
	})
	assertErrCode(t, err, appErrors.ErrForbidden.Code)
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "taken@example.com"},
	}}
	svc := newUserService(repo)

	_, err := svc.Create(context.Background(), claimsFor("adm-1", false, true), models.CreateUserRequest{
		Email: "taken@example.com", Password: "secret1", FullName: "New User",
	})
	assertErrCode(t, err, appErrors.ErrValidation.Code)
}

func TestUserDeactivateEncumbered(t *testing.T) {
	repo := &mockUserRepo{
		users:        map[string]*models.User{"u1": {ID: "u1", Active: true}},
		encumbrances: repository.Encumbrances{UnfinalisedMarks: 1},
	}
	svc := newUserService(repo)

	err := svc.Deactivate(context.Background(), claimsFor("adm-1", false, true), "u1")
	assertErrCode(t, err, appErrors.ErrUserEncumbered.Code)
	assert.Empty(t, repo.deactivatedID)
}

func TestUserDeactivate(t *testing.T) {
	repo := &mockUserRepo{
		users: map[string]*models.User{"u1": {ID: "u1", Active: true}},
	}
	svc := newUserService(repo)

	err := svc.Deactivate(context.Background(), claimsFor("adm-1", false, true), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", repo.deactivatedID)
	assert.Equal(t, "u1", repo.revokedUserID)
}

func TestUserDeactivateSelf(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"adm-1": {ID: "adm-1", Active: true}}}
	svc := newUserService(repo)

	err := svc.Deactivate(context.Background(), claimsFor("adm-1", false, true), "adm-1")
	assertErrCode(t, err, appErrors.ErrInvalidAction.Code)
}

func TestUserSetAdminSelfDemotion(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"adm-1": {ID: "adm-1", IsAdmin: true}}}
	svc := newUserService(repo)

	_, err := svc.SetAdmin(context.Background(), claimsFor("adm-1", false, true), "adm-1", false)
	assertErrCode(t, err, appErrors.ErrInvalidAction.Code)
}

func TestUserSetAdmin(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"u1": {ID: "u1"}}}
	svc := newUserService(repo)

	user, err := svc.SetAdmin(context.Background(), claimsFor("adm-1", false, true), "u1", true)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)
	assert.True(t, repo.adminSet["u1"])
}

func TestUserListPagination(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"u1": {ID: "u1", CreatedAt: time.Now()},
		"u2": {ID: "u2", CreatedAt: time.Now()},
	}}
	svc := newUserService(repo)

	users, pagination, err := svc.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 2, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)
}
