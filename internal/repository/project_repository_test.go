package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/dissertation-api/internal/models"
)

func TestProjectRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "proposal_id", "student_id", "supervisor_id", "second_marker_id", "submitted_at", "archived_at", "created_at", "updated_at"}).
		AddRow("proj-1", "prop-1", "stu-1", "sup-1", nil, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE id = $1 LIMIT 1")).
		WithArgs("proj-1").
		WillReturnRows(rows)

	project, err := repo.FindByID(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, "stu-1", project.StudentID)
	assert.False(t, project.IsSubmitted())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositorySetSubmittedTwice(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE projects SET submitted_at = $2, updated_at = $2 WHERE id = $1 AND submitted_at IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetSubmitted(context.Background(), "proj-1", time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryAssignSecondMarker(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE projects SET second_marker_id = $2, updated_at = $3 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO project_marks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.AssignSecondMarker(context.Background(), "proj-1", "sm-1", 1)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryListByMarker(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "proposal_id", "student_id", "supervisor_id", "second_marker_id", "submitted_at", "archived_at", "created_at", "updated_at"}).
		AddRow("proj-1", "prop-1", "stu-1", "sup-1", "sm-1", now, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("AND id IN (SELECT project_id FROM project_marks WHERE marker_id = $1)")).
		WithArgs("sm-1").
		WillReturnRows(rows)

	projects, err := repo.List(context.Background(), models.ProjectFilter{MarkerID: "sm-1"})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
