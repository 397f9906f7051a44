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

func TestProposalRepositoryHasPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM proposals WHERE student_id = $1 AND accepted_at IS NULL AND rejected_at IS NULL")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	pending, err := repo.HasPending(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.True(t, pending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositoryListPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "description", "catalog_proposal_id", "student_id", "supervisor_id", "created_at", "accepted_at", "rejected_at"}).
		AddRow("prop-1", "Title", "Desc", nil, "stu-1", "sup-1", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("AND accepted_at IS NULL AND rejected_at IS NULL ORDER BY created_at DESC")).
		WithArgs("sup-1").
		WillReturnRows(rows)

	proposals, err := repo.List(context.Background(), models.ProposalFilter{SupervisorID: "sup-1", Status: models.ProposalPending})
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, models.ProposalPending, proposals[0].Status())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositoryAccept(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE proposals SET accepted_at = $2 WHERE id = $1 AND accepted_at IS NULL AND rejected_at IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO projects").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO project_marks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	proposal := &models.Proposal{ID: "prop-1", StudentID: "stu-1", SupervisorID: "sup-1"}
	project := &models.Project{ProposalID: "prop-1", StudentID: "stu-1", SupervisorID: "sup-1"}
	supervisorMark := &models.ProjectMark{MarkerID: "sup-1", Round: 1}

	err := repo.Accept(context.Background(), proposal, project, supervisorMark)
	require.NoError(t, err)
	assert.NotEmpty(t, project.ID)
	assert.Equal(t, project.ID, supervisorMark.ProjectID)
	assert.NotNil(t, proposal.AcceptedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositoryAcceptAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE proposals SET accepted_at = $2 WHERE id = $1 AND accepted_at IS NULL AND rejected_at IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Accept(context.Background(), &models.Proposal{ID: "prop-1"}, &models.Project{}, &models.ProjectMark{})
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositoryRejectAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE proposals SET rejected_at = $2 WHERE id = $1 AND accepted_at IS NULL AND rejected_at IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Reject(context.Background(), "prop-1", time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
