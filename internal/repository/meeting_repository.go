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

// MeetingRepository handles supervision meeting persistence.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository creates a new meeting repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

const meetingColumns = `id, project_id, starts_at, ends_at, location, attended, outcome_notes, created_at, updated_at`

// FindByID returns a meeting by identifier.
func (r *MeetingRepository) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	query := fmt.Sprintf(`SELECT %s FROM meetings WHERE id = $1 LIMIT 1`, meetingColumns)
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find meeting by id: %w", err)
	}
	return &meeting, nil
}

// ListByProject returns all meetings for a project in chronological order.
func (r *MeetingRepository) ListByProject(ctx context.Context, projectID string) ([]models.Meeting, error) {
	query := fmt.Sprintf(`SELECT %s FROM meetings WHERE project_id = $1 ORDER BY starts_at ASC`, meetingColumns)
	var meetings []models.Meeting
	if err := r.db.SelectContext(ctx, &meetings, query, projectID); err != nil {
		return nil, fmt.Errorf("list meetings by project: %w", err)
	}
	return meetings, nil
}

// Create inserts a new meeting.
func (r *MeetingRepository) Create(ctx context.Context, meeting *models.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = now
	}
	meeting.UpdatedAt = now

	const query = `INSERT INTO meetings (id, project_id, starts_at, ends_at, location, attended, outcome_notes, created_at, updated_at)
        VALUES (:id, :project_id, :starts_at, :ends_at, :location, :attended, :outcome_notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, meeting); err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	return nil
}

// Update stores the attendance flag and outcome notes for a meeting.
func (r *MeetingRepository) Update(ctx context.Context, meeting *models.Meeting) error {
	meeting.UpdatedAt = time.Now().UTC()
	const query = `UPDATE meetings SET starts_at = :starts_at, ends_at = :ends_at, location = :location, attended = :attended, outcome_notes = :outcome_notes, updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, meeting)
	if err != nil {
		return fmt.Errorf("update meeting: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
