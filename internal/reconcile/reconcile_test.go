package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/dissertation-api/internal/models"
)

func gradePtr(v float64) *float64 { return &v }

func mark(id, marker string, round int, grade *float64, finalised bool) models.ProjectMark {
	return models.ProjectMark{
		ID:        id,
		ProjectID: "proj",
		MarkerID:  marker,
		Round:     round,
		Grade:     grade,
		Finalised: finalised,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(round) * time.Hour),
	}
}

func TestFinalGradeConcordantPair(t *testing.T) {
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, gradePtr(80), true),
		mark("m2", "sm", 1, gradePtr(82), true),
	}

	grade, err := FinalGrade(marks)
	require.NoError(t, err)
	assert.Equal(t, 81.0, grade)
}

func TestFinalGradeEmpty(t *testing.T) {
	_, err := FinalGrade(nil)
	require.ErrorIs(t, err, ErrNoConcordantMarks)
}

func TestFinalGradeOddCount(t *testing.T) {
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, gradePtr(80), true),
		mark("m2", "sm", 1, gradePtr(82), true),
		mark("m3", "sup", 2, gradePtr(70), true),
	}

	_, err := FinalGrade(marks)
	require.ErrorIs(t, err, ErrNoConcordantMarks)
}

func TestFinalGradeDiscordantPair(t *testing.T) {
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, gradePtr(80), true),
		mark("m2", "sm", 1, gradePtr(90), true),
	}

	_, err := FinalGrade(marks)
	require.ErrorIs(t, err, ErrNoConcordantMarks)
}

func TestFinalGradeBoundaryDifference(t *testing.T) {
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, gradePtr(70), true),
		mark("m2", "sm", 1, gradePtr(75), true),
	}

	grade, err := FinalGrade(marks)
	require.NoError(t, err)
	assert.Equal(t, 72.5, grade)
}

func TestFinalGradeFirstConcordantRoundWins(t *testing.T) {
	// Round 1 agrees; round 2 disagrees. The earlier agreement stands.
	marks := []models.ProjectMark{
		mark("m3", "sup", 2, gradePtr(40), true),
		mark("m4", "sm", 2, gradePtr(60), true),
		mark("m1", "sup", 1, gradePtr(64), true),
		mark("m2", "sm", 1, gradePtr(66), true),
	}

	grade, err := FinalGrade(marks)
	require.NoError(t, err)
	assert.Equal(t, 65.0, grade)
}

func TestFinalGradeLaterRoundResolves(t *testing.T) {
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, gradePtr(80), true),
		mark("m2", "sm", 1, gradePtr(90), true),
		mark("m3", "sup", 2, gradePtr(84), true),
		mark("m4", "sm", 2, gradePtr(86), true),
	}

	grade, err := FinalGrade(marks)
	require.NoError(t, err)
	assert.Equal(t, 85.0, grade)
}

func TestFinalGradeSkipsPairsMissingGrades(t *testing.T) {
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, nil, true),
		mark("m2", "sm", 1, gradePtr(66), true),
		mark("m3", "sup", 2, gradePtr(64), true),
		mark("m4", "sm", 2, gradePtr(66), true),
	}

	grade, err := FinalGrade(marks)
	require.NoError(t, err)
	assert.Equal(t, 65.0, grade)
}

func TestFinalGradeIgnoresUnfinalised(t *testing.T) {
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, gradePtr(80), true),
		mark("m2", "sm", 1, gradePtr(82), true),
		mark("m3", "sup", 2, nil, false),
		mark("m4", "sm", 2, nil, false),
	}

	grade, err := FinalGrade(marks)
	require.NoError(t, err)
	assert.Equal(t, 81.0, grade)
}

func TestStatusActiveBeforeSubmission(t *testing.T) {
	project := &models.Project{ID: "proj"}
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, gradePtr(80), true),
		mark("m2", "sm", 1, gradePtr(82), true),
	}

	// Marks present or not, an unsubmitted project stays active.
	assert.Equal(t, models.ProjectActive, Status(project, marks))
	assert.Equal(t, models.ProjectActive, Status(project, nil))
}

func TestStatusSubmittedAwaitingMarks(t *testing.T) {
	now := time.Now()
	project := &models.Project{ID: "proj", SubmittedAt: &now}
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, nil, false),
		mark("m2", "sm", 1, nil, false),
	}

	assert.Equal(t, models.ProjectSubmitted, Status(project, marks))
}

func TestStatusMarkingInProgress(t *testing.T) {
	now := time.Now()
	project := &models.Project{ID: "proj", SubmittedAt: &now}
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, gradePtr(80), true),
		mark("m2", "sm", 1, nil, false),
	}

	assert.Equal(t, models.ProjectMarking, Status(project, marks))
}

func TestStatusMarksConfirmed(t *testing.T) {
	now := time.Now()
	project := &models.Project{ID: "proj", SubmittedAt: &now}
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, gradePtr(80), true),
		mark("m2", "sm", 1, gradePtr(82), true),
	}

	assert.Equal(t, models.ProjectMarksConfirmed, Status(project, marks))
}

func TestStatusArchivedWins(t *testing.T) {
	now := time.Now()
	project := &models.Project{ID: "proj", SubmittedAt: &now, ArchivedAt: &now}

	assert.Equal(t, models.ProjectArchived, Status(project, nil))
}

func TestNextRoundSeedsAfterDiscordantRound(t *testing.T) {
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, gradePtr(80), true),
		mark("m2", "sm", 1, gradePtr(90), true),
	}

	round, markers := NextRoundSeeds(marks)
	assert.Equal(t, 2, round)
	assert.ElementsMatch(t, []string{"sup", "sm"}, markers)
}

func TestNextRoundSeedsIdempotent(t *testing.T) {
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, gradePtr(80), true),
		mark("m2", "sm", 1, gradePtr(90), true),
		mark("m3", "sup", 2, nil, false),
		mark("m4", "sm", 2, nil, false),
	}

	round, markers := NextRoundSeeds(marks)
	assert.Zero(t, round)
	assert.Empty(t, markers)
}

func TestNextRoundSeedsPartialPending(t *testing.T) {
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, gradePtr(80), true),
		mark("m2", "sm", 1, gradePtr(90), true),
		mark("m3", "sup", 2, nil, false),
	}

	round, markers := NextRoundSeeds(marks)
	assert.Equal(t, 2, round)
	assert.Equal(t, []string{"sm"}, markers)
}

func TestNextRoundSeedsNoneWhenConcordant(t *testing.T) {
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, gradePtr(80), true),
		mark("m2", "sm", 1, gradePtr(82), true),
	}

	round, markers := NextRoundSeeds(marks)
	assert.Zero(t, round)
	assert.Empty(t, markers)
}

func TestNextRoundSeedsNoneWhenOdd(t *testing.T) {
	marks := []models.ProjectMark{
		mark("m1", "sup", 1, gradePtr(80), true),
	}

	round, markers := NextRoundSeeds(marks)
	assert.Zero(t, round)
	assert.Empty(t, markers)
}
