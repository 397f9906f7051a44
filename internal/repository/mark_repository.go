package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushub/dissertation-api/internal/models"
)

// ErrMarkAlreadyFinalised signals that the mark record was finalised by a
// concurrent request. Callers translate it into a conflict response.
var ErrMarkAlreadyFinalised = errors.New("mark already finalised")

// MarkRepository handles mark record persistence.
type MarkRepository struct {
	db *sqlx.DB
}

// NewMarkRepository creates a new mark repository.
func NewMarkRepository(db *sqlx.DB) *MarkRepository {
	return &MarkRepository{db: db}
}

const markColumns = `id, project_id, marker_id, round, grade, feedback, finalised, submitted_at, created_at, updated_at`

// FindByID returns a mark record by identifier.
func (r *MarkRepository) FindByID(ctx context.Context, id string) (*models.ProjectMark, error) {
	query := fmt.Sprintf(`SELECT %s FROM project_marks WHERE id = $1 LIMIT 1`, markColumns)
	var mark models.ProjectMark
	if err := r.db.GetContext(ctx, &mark, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find mark by id: %w", err)
	}
	return &mark, nil
}

// ListByProject returns all mark records for a project in round order.
func (r *MarkRepository) ListByProject(ctx context.Context, projectID string) ([]models.ProjectMark, error) {
	query := fmt.Sprintf(`SELECT %s FROM project_marks WHERE project_id = $1 ORDER BY round ASC, created_at ASC, id ASC`, markColumns)
	var marks []models.ProjectMark
	if err := r.db.SelectContext(ctx, &marks, query, projectID); err != nil {
		return nil, fmt.Errorf("list marks by project: %w", err)
	}
	return marks, nil
}

// ListByMarker returns mark records assigned to a marker, pending first.
func (r *MarkRepository) ListByMarker(ctx context.Context, markerID string) ([]models.ProjectMark, error) {
	query := fmt.Sprintf(`SELECT %s FROM project_marks WHERE marker_id = $1 ORDER BY finalised ASC, created_at DESC`, markColumns)
	var marks []models.ProjectMark
	if err := r.db.SelectContext(ctx, &marks, query, markerID); err != nil {
		return nil, fmt.Errorf("list marks by marker: %w", err)
	}
	return marks, nil
}

// Create inserts a pending mark record.
func (r *MarkRepository) Create(ctx context.Context, mark *models.ProjectMark) error {
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if mark.CreatedAt.IsZero() {
		mark.CreatedAt = now
	}
	mark.UpdatedAt = now

	const query = `INSERT INTO project_marks (id, project_id, marker_id, round, grade, feedback, finalised, created_at, updated_at)
        VALUES (:id, :project_id, :marker_id, :round, :grade, :feedback, :finalised, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mark); err != nil {
		return fmt.Errorf("create mark: %w", err)
	}
	return nil
}

// SaveDraft updates the grade and feedback of an unfinalised mark without
// finalising it. A finalised record is never touched.
func (r *MarkRepository) SaveDraft(ctx context.Context, id string, grade *float64, feedback *string) error {
	const query = `UPDATE project_marks SET grade = $2, feedback = $3, updated_at = $4 WHERE id = $1 AND finalised = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, grade, feedback, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save mark draft: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrMarkAlreadyFinalised
	}
	return nil
}

// FinalizeAndSeed finalises a mark and, when reconciliation demands a fresh
// round, seeds pending records for the given markers in the same transaction.
// The conditional update makes concurrent finalisation of the same record a
// conflict rather than a silent overwrite, and the guarded inserts keep round
// seeding idempotent under races.
func (r *MarkRepository) FinalizeAndSeed(ctx context.Context, mark *models.ProjectMark, round int, seedMarkerIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	const finaliseQuery = `UPDATE project_marks SET grade = $2, feedback = $3, finalised = TRUE, submitted_at = $4, updated_at = $4
        WHERE id = $1 AND finalised = FALSE`
	res, err := tx.ExecContext(ctx, finaliseQuery, mark.ID, mark.Grade, mark.Feedback, now)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("finalise mark: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		tx.Rollback() //nolint:errcheck
		return ErrMarkAlreadyFinalised
	}

	const seedQuery = `INSERT INTO project_marks (id, project_id, marker_id, round, finalised, created_at, updated_at)
        SELECT $1, $2, $3, $4, FALSE, $5, $5
        WHERE NOT EXISTS (SELECT 1 FROM project_marks WHERE project_id = $2 AND marker_id = $3 AND finalised = FALSE)`
	for _, markerID := range seedMarkerIDs {
		if _, err := tx.ExecContext(ctx, seedQuery, uuid.NewString(), mark.ProjectID, markerID, round, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("seed next round mark: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mark finalisation: %w", err)
	}

	mark.Finalised = true
	mark.SubmittedAt = &now
	mark.UpdatedAt = now
	return nil
}
