package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushub/dissertation-api/internal/models"
)

// ProjectRepository handles project persistence.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, proposal_id, student_id, supervisor_id, second_marker_id, submitted_at, archived_at, created_at, updated_at`

// FindByID returns a project by identifier.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1 LIMIT 1`, projectColumns)
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find project by id: %w", err)
	}
	return &project, nil
}

// List returns projects matching the filter, newest first.
func (r *ProjectRepository) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE 1=1`, projectColumns)
	var args []interface{}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.SupervisorID != "" {
		query += fmt.Sprintf(" AND supervisor_id = $%d", len(args)+1)
		args = append(args, filter.SupervisorID)
	}
	if filter.MarkerID != "" {
		query += fmt.Sprintf(" AND id IN (SELECT project_id FROM project_marks WHERE marker_id = $%d)", len(args)+1)
		args = append(args, filter.MarkerID)
	}
	if filter.Archived != nil {
		if *filter.Archived {
			query += " AND archived_at IS NOT NULL"
		} else {
			query += " AND archived_at IS NULL"
		}
	}
	query += " ORDER BY created_at DESC"

	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// SetSubmitted stamps the submission time. Only an unsubmitted project may be
// submitted; zero rows affected surfaces as sql.ErrNoRows.
func (r *ProjectRepository) SetSubmitted(ctx context.Context, id string, submittedAt time.Time) error {
	const query = `UPDATE projects SET submitted_at = $2, updated_at = $2 WHERE id = $1 AND submitted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, submittedAt)
	if err != nil {
		return fmt.Errorf("submit project: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AssignSecondMarker stores the marker reference and seeds a pending mark for
// them when none exists, in one transaction.
func (r *ProjectRepository) AssignSecondMarker(ctx context.Context, projectID, markerID string, round int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	const updateQuery = `UPDATE projects SET second_marker_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateQuery, projectID, markerID, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("assign second marker: %w", err)
	}

	const seedQuery = `INSERT INTO project_marks (id, project_id, marker_id, round, finalised, created_at, updated_at)
        SELECT $1, $2, $3, $4, FALSE, $5, $5
        WHERE NOT EXISTS (SELECT 1 FROM project_marks WHERE project_id = $2 AND marker_id = $3)`
	if _, err := tx.ExecContext(ctx, seedQuery, uuid.NewString(), projectID, markerID, round, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("seed second marker mark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit second marker assignment: %w", err)
	}
	return nil
}

// ClearSecondMarker removes the marker reference. Idempotent.
func (r *ProjectRepository) ClearSecondMarker(ctx context.Context, projectID string) error {
	const query = `UPDATE projects SET second_marker_id = NULL, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, projectID, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear second marker: %w", err)
	}
	return nil
}

// SetArchived stamps the archive time.
func (r *ProjectRepository) SetArchived(ctx context.Context, id string, archivedAt time.Time) error {
	const query = `UPDATE projects SET archived_at = $2, updated_at = $2 WHERE id = $1 AND archived_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, archivedAt)
	if err != nil {
		return fmt.Errorf("archive project: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
