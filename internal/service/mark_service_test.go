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
	appErrors "github.com/campushub/dissertation-api/pkg/errors"
)

type mockMarkRepo struct {
	marks map[string]*models.ProjectMark

	seededRound   int
	seededMarkers []string
	draftSaved    bool
}

func (m *mockMarkRepo) FindByID(ctx context.Context, id string) (*models.ProjectMark, error) {
	if mk, ok := m.marks[id]; ok {
		return mk, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMarkRepo) ListByProject(ctx context.Context, projectID string) ([]models.ProjectMark, error) {
	var out []models.ProjectMark
	for _, mk := range m.marks {
		if mk.ProjectID == projectID {
			out = append(out, *mk)
		}
	}
	return out, nil
}

func (m *mockMarkRepo) ListByMarker(ctx context.Context, markerID string) ([]models.ProjectMark, error) {
	var out []models.ProjectMark
	for _, mk := range m.marks {
		if mk.MarkerID == markerID {
			out = append(out, *mk)
		}
	}
	return out, nil
}

func (m *mockMarkRepo) SaveDraft(ctx context.Context, id string, grade *float64, feedback *string) error {
	mk := m.marks[id]
	mk.Grade = grade
	mk.Feedback = feedback
	m.draftSaved = true
	return nil
}

func (m *mockMarkRepo) FinalizeAndSeed(ctx context.Context, mark *models.ProjectMark, round int, seedMarkerIDs []string) error {
	now := time.Now()
	stored := m.marks[mark.ID]
	stored.Grade = mark.Grade
	stored.Feedback = mark.Feedback
	stored.Finalised = true
	stored.SubmittedAt = &now
	mark.Finalised = true
	mark.SubmittedAt = &now
	m.seededRound = round
	m.seededMarkers = seedMarkerIDs
	for _, markerID := range seedMarkerIDs {
		id := "seed-" + markerID
		m.marks[id] = &models.ProjectMark{ID: id, ProjectID: mark.ProjectID, MarkerID: markerID, Round: round}
	}
	return nil
}

type mockProjectReader struct {
	projects map[string]*models.Project
}

func (m *mockProjectReader) FindByID(ctx context.Context, id string) (*models.Project, error) {
	if p, ok := m.projects[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func disabledCache() *CacheService {
	return NewCacheService(nil, nil, 0, zap.NewNop(), false)
}

func submittedProject() *mockProjectReader {
	now := time.Now()
	secondMarker := "sm-1"
	return &mockProjectReader{projects: map[string]*models.Project{
		"proj-1": {ID: "proj-1", StudentID: "stu-1", SupervisorID: "sup-1", SecondMarkerID: &secondMarker, SubmittedAt: &now},
	}}
}

func newMarkService(repo *mockMarkRepo, projects *mockProjectReader) *MarkService {
	return NewMarkService(repo, projects, disabledCache(), NewMetricsService(), validator.New(), zap.NewNop())
}

func TestMarkFinaliseConcordantPairClosesMarking(t *testing.T) {
	g1 := 80.0
	now := time.Now()
	repo := &mockMarkRepo{marks: map[string]*models.ProjectMark{
		"m1": {ID: "m1", ProjectID: "proj-1", MarkerID: "sup-1", Round: 1, Grade: &g1, Finalised: true, SubmittedAt: &now},
		"m2": {ID: "m2", ProjectID: "proj-1", MarkerID: "sm-1", Round: 1},
	}}
	svc := newMarkService(repo, submittedProject())

	g2 := 82.0
	mark, err := svc.Submit(context.Background(), claimsFor("sm-1", true, false), "m2", models.SubmitMarkRequest{
		Grade: &g2, Finalise: true,
	})
	require.NoError(t, err)
	assert.True(t, mark.Finalised)
	assert.Empty(t, repo.seededMarkers)
}

func TestMarkFinaliseDiscordantPairSeedsNewRound(t *testing.T) {
	g1 := 80.0
	now := time.Now()
	repo := &mockMarkRepo{marks: map[string]*models.ProjectMark{
		"m1": {ID: "m1", ProjectID: "proj-1", MarkerID: "sup-1", Round: 1, Grade: &g1, Finalised: true, SubmittedAt: &now},
		"m2": {ID: "m2", ProjectID: "proj-1", MarkerID: "sm-1", Round: 1},
	}}
	svc := newMarkService(repo, submittedProject())

	g2 := 90.0
	_, err := svc.Submit(context.Background(), claimsFor("sm-1", true, false), "m2", models.SubmitMarkRequest{
		Grade: &g2, Finalise: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.seededRound)
	assert.ElementsMatch(t, []string{"sup-1", "sm-1"}, repo.seededMarkers)
}

func TestMarkDraftSaveKeepsRecordOpen(t *testing.T) {
	repo := &mockMarkRepo{marks: map[string]*models.ProjectMark{
		"m1": {ID: "m1", ProjectID: "proj-1", MarkerID: "sup-1", Round: 1},
	}}
	svc := newMarkService(repo, submittedProject())

	g := 64.0
	mark, err := svc.Submit(context.Background(), claimsFor("sup-1", true, false), "m1", models.SubmitMarkRequest{Grade: &g})
	require.NoError(t, err)
	assert.False(t, mark.Finalised)
	assert.True(t, repo.draftSaved)
	assert.Empty(t, repo.seededMarkers)
}

func TestMarkSubmitByOutsideSupervisor(t *testing.T) {
	repo := &mockMarkRepo{marks: map[string]*models.ProjectMark{
		"m1": {ID: "m1", ProjectID: "proj-1", MarkerID: "sup-1", Round: 1},
	}}
	svc := newMarkService(repo, submittedProject())

	g := 64.0
	_, err := svc.Submit(context.Background(), claimsFor("sup-2", true, false), "m1", models.SubmitMarkRequest{Grade: &g})
	assertErrCode(t, err, appErrors.ErrForbidden.Code)
}

func TestMarkSupervisorFinalisesSecondMarkersRecord(t *testing.T) {
	g1 := 80.0
	now := time.Now()
	repo := &mockMarkRepo{marks: map[string]*models.ProjectMark{
		"m1": {ID: "m1", ProjectID: "proj-1", MarkerID: "sup-1", Round: 1, Grade: &g1, Finalised: true, SubmittedAt: &now},
		"m2": {ID: "m2", ProjectID: "proj-1", MarkerID: "sm-1", Round: 1},
	}}
	svc := newMarkService(repo, submittedProject())

	g2 := 78.0
	mark, err := svc.Submit(context.Background(), claimsFor("sup-1", true, false), "m2", models.SubmitMarkRequest{
		Grade: &g2, Finalise: true,
	})
	require.NoError(t, err)
	assert.True(t, mark.Finalised)
	assert.Equal(t, "sm-1", mark.MarkerID)
	assert.Empty(t, repo.seededMarkers)
}

func TestMarkFinaliseWithoutGrade(t *testing.T) {
	repo := &mockMarkRepo{marks: map[string]*models.ProjectMark{
		"m1": {ID: "m1", ProjectID: "proj-1", MarkerID: "sup-1", Round: 1},
	}}
	svc := newMarkService(repo, submittedProject())

	_, err := svc.Submit(context.Background(), claimsFor("sup-1", true, false), "m1", models.SubmitMarkRequest{Finalise: true})
	assertErrCode(t, err, appErrors.ErrValidation.Code)
}

func TestMarkFinaliseTwice(t *testing.T) {
	g := 70.0
	now := time.Now()
	repo := &mockMarkRepo{marks: map[string]*models.ProjectMark{
		"m1": {ID: "m1", ProjectID: "proj-1", MarkerID: "sup-1", Round: 1, Grade: &g, Finalised: true, SubmittedAt: &now},
	}}
	svc := newMarkService(repo, submittedProject())

	_, err := svc.Submit(context.Background(), claimsFor("sup-1", true, false), "m1", models.SubmitMarkRequest{Grade: &g, Finalise: true})
	assertErrCode(t, err, appErrors.ErrAlreadyFinalised.Code)
}

func TestMarkSubmitOnUnsubmittedProject(t *testing.T) {
	repo := &mockMarkRepo{marks: map[string]*models.ProjectMark{
		"m1": {ID: "m1", ProjectID: "proj-1", MarkerID: "sup-1", Round: 1},
	}}
	projects := &mockProjectReader{projects: map[string]*models.Project{
		"proj-1": {ID: "proj-1", StudentID: "stu-1", SupervisorID: "sup-1"},
	}}
	svc := newMarkService(repo, projects)

	g := 64.0
	_, err := svc.Submit(context.Background(), claimsFor("sup-1", true, false), "m1", models.SubmitMarkRequest{Grade: &g})
	assertErrCode(t, err, appErrors.ErrInvalidState.Code)
}

func TestMarkGradeOutOfRange(t *testing.T) {
	repo := &mockMarkRepo{marks: map[string]*models.ProjectMark{
		"m1": {ID: "m1", ProjectID: "proj-1", MarkerID: "sup-1", Round: 1},
	}}
	svc := newMarkService(repo, submittedProject())

	g := 120.0
	_, err := svc.Submit(context.Background(), claimsFor("sup-1", true, false), "m1", models.SubmitMarkRequest{Grade: &g, Finalise: true})
	assertErrCode(t, err, appErrors.ErrValidation.Code)
}

func TestMarkListByProjectHiddenFromStudentDuringMarking(t *testing.T) {
	g := 70.0
	now := time.Now()
	repo := &mockMarkRepo{marks: map[string]*models.ProjectMark{
		"m1": {ID: "m1", ProjectID: "proj-1", MarkerID: "sup-1", Round: 1, Grade: &g, Finalised: true, SubmittedAt: &now},
	}}
	svc := newMarkService(repo, submittedProject())

	_, err := svc.ListByProject(context.Background(), claimsFor("stu-1", false, false), "proj-1")
	assertErrCode(t, err, appErrors.ErrForbidden.Code)
}

func TestMarkListByProjectReleasedAfterConfirmation(t *testing.T) {
	g1, g2 := 80.0, 82.0
	now := time.Now()
	repo := &mockMarkRepo{marks: map[string]*models.ProjectMark{
		"m1": {ID: "m1", ProjectID: "proj-1", MarkerID: "sup-1", Round: 1, Grade: &g1, Finalised: true, SubmittedAt: &now},
		"m2": {ID: "m2", ProjectID: "proj-1", MarkerID: "sm-1", Round: 1, Grade: &g2, Finalised: true, SubmittedAt: &now},
	}}
	svc := newMarkService(repo, submittedProject())

	marks, err := svc.ListByProject(context.Background(), claimsFor("stu-1", false, false), "proj-1")
	require.NoError(t, err)
	assert.Len(t, marks, 2)
}
