package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/dissertation-api/internal/models"
)

func TestMarkRepositoryListByProject(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "project_id", "marker_id", "round", "grade", "feedback", "finalised", "submitted_at", "created_at", "updated_at"}).
		AddRow("m1", "proj-1", "sup-1", 1, 80.0, "solid work", true, now, now, now).
		AddRow("m2", "proj-1", "sm-1", 1, nil, nil, false, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM project_marks WHERE project_id = $1 ORDER BY round ASC, created_at ASC, id ASC")).
		WithArgs("proj-1").
		WillReturnRows(rows)

	marks, err := repo.ListByProject(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Len(t, marks, 2)
	assert.True(t, marks[0].Finalised)
	assert.False(t, marks[1].Finalised)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryFinalizeAndSeed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("finalised = TRUE, submitted_at = $4, updated_at = $4")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO project_marks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO project_marks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	grade := 70.0
	mark := &models.ProjectMark{ID: "m1", ProjectID: "proj-1", MarkerID: "sup-1", Round: 1, Grade: &grade}

	err := repo.FinalizeAndSeed(context.Background(), mark, 2, []string{"sup-1", "sm-1"})
	require.NoError(t, err)
	assert.True(t, mark.Finalised)
	require.NotNil(t, mark.SubmittedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryFinalizeWithoutSeeds(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("finalised = TRUE, submitted_at = $4, updated_at = $4")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	grade := 65.0
	mark := &models.ProjectMark{ID: "m2", ProjectID: "proj-1", MarkerID: "sm-1", Round: 1, Grade: &grade}

	err := repo.FinalizeAndSeed(context.Background(), mark, 0, nil)
	require.NoError(t, err)
	assert.True(t, mark.Finalised)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryFinalizeConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("finalised = TRUE, submitted_at = $4, updated_at = $4")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	grade := 70.0
	mark := &models.ProjectMark{ID: "m1", ProjectID: "proj-1", Grade: &grade}

	err := repo.FinalizeAndSeed(context.Background(), mark, 0, nil)
	require.ErrorIs(t, err, ErrMarkAlreadyFinalised)
	assert.False(t, mark.Finalised)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositorySaveDraftConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE project_marks SET grade = $2, feedback = $3, updated_at = $4 WHERE id = $1 AND finalised = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	grade := 50.0
	err := repo.SaveDraft(context.Background(), "m1", &grade, nil)
	require.ErrorIs(t, err, ErrMarkAlreadyFinalised)
	assert.NoError(t, mock.ExpectationsWereMet())
}
