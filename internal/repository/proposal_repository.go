package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushub/dissertation-api/internal/models"
)

// ProposalRepository handles proposal and catalog proposal persistence.
type ProposalRepository struct {
	db *sqlx.DB
}

// NewProposalRepository creates a new proposal repository.
func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

const proposalColumns = `id, title, description, catalog_proposal_id, student_id, supervisor_id, created_at, accepted_at, rejected_at`

// FindByID returns a proposal by identifier.
func (r *ProposalRepository) FindByID(ctx context.Context, id string) (*models.Proposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposals WHERE id = $1 LIMIT 1`, proposalColumns)
	var proposal models.Proposal
	if err := r.db.GetContext(ctx, &proposal, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find proposal by id: %w", err)
	}
	return &proposal, nil
}

// List returns proposals matching the filter, newest first.
func (r *ProposalRepository) List(ctx context.Context, filter models.ProposalFilter) ([]models.Proposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposals WHERE 1=1`, proposalColumns)
	var args []interface{}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.SupervisorID != "" {
		query += fmt.Sprintf(" AND supervisor_id = $%d", len(args)+1)
		args = append(args, filter.SupervisorID)
	}
	switch filter.Status {
	case models.ProposalPending:
		query += " AND accepted_at IS NULL AND rejected_at IS NULL"
	case models.ProposalAccepted:
		query += " AND accepted_at IS NOT NULL AND rejected_at IS NULL"
	case models.ProposalRejected:
		query += " AND rejected_at IS NOT NULL"
	}
	query += " ORDER BY created_at DESC"

	var proposals []models.Proposal
	if err := r.db.SelectContext(ctx, &proposals, query, args...); err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	return proposals, nil
}

// HasPending reports whether the student already has a pending proposal.
func (r *ProposalRepository) HasPending(ctx context.Context, studentID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM proposals WHERE student_id = $1 AND accepted_at IS NULL AND rejected_at IS NULL`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID); err != nil {
		return false, fmt.Errorf("count pending proposals: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new proposal.
func (r *ProposalRepository) Create(ctx context.Context, proposal *models.Proposal) error {
	if proposal.ID == "" {
		proposal.ID = uuid.NewString()
	}
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO proposals (id, title, description, catalog_proposal_id, student_id, supervisor_id, created_at)
        VALUES (:id, :title, :description, :catalog_proposal_id, :student_id, :supervisor_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, proposal); err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	return nil
}

// Accept stamps the proposal accepted and creates the project together with the
// supervisor's first mark record in a single transaction.
func (r *ProposalRepository) Accept(ctx context.Context, proposal *models.Proposal, project *models.Project, supervisorMark *models.ProjectMark) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	proposal.AcceptedAt = &now

	const acceptQuery = `UPDATE proposals SET accepted_at = $2 WHERE id = $1 AND accepted_at IS NULL AND rejected_at IS NULL`
	res, err := tx.ExecContext(ctx, acceptQuery, proposal.ID, now)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("accept proposal: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}

	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	project.CreatedAt = now
	project.UpdatedAt = now
	const projectQuery = `INSERT INTO projects (id, proposal_id, student_id, supervisor_id, created_at, updated_at)
        VALUES (:id, :proposal_id, :student_id, :supervisor_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, projectQuery, project); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create project: %w", err)
	}

	if supervisorMark.ID == "" {
		supervisorMark.ID = uuid.NewString()
	}
	supervisorMark.ProjectID = project.ID
	supervisorMark.CreatedAt = now
	supervisorMark.UpdatedAt = now
	const markQuery = `INSERT INTO project_marks (id, project_id, marker_id, round, finalised, created_at, updated_at)
        VALUES (:id, :project_id, :marker_id, :round, :finalised, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, markQuery, supervisorMark); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create supervisor mark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit proposal acceptance: %w", err)
	}
	return nil
}

// Reject stamps the proposal rejected.
func (r *ProposalRepository) Reject(ctx context.Context, id string, rejectedAt time.Time) error {
	const query = `UPDATE proposals SET rejected_at = $2 WHERE id = $1 AND accepted_at IS NULL AND rejected_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, rejectedAt)
	if err != nil {
		return fmt.Errorf("reject proposal: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a proposal. Only pending proposals may be withdrawn.
func (r *ProposalRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM proposals WHERE id = $1 AND accepted_at IS NULL AND rejected_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete proposal: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const catalogColumns = `id, title, description, supervisor_id, active, created_at`

// FindCatalogByID returns a catalog proposal by identifier.
func (r *ProposalRepository) FindCatalogByID(ctx context.Context, id string) (*models.CatalogProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM catalog_proposals WHERE id = $1 LIMIT 1`, catalogColumns)
	var entry models.CatalogProposal
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find catalog proposal: %w", err)
	}
	return &entry, nil
}

// ListCatalog returns catalog proposals, optionally only active entries.
func (r *ProposalRepository) ListCatalog(ctx context.Context, onlyActive bool) ([]models.CatalogProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM catalog_proposals`, catalogColumns)
	var clauses []string
	if onlyActive {
		clauses = append(clauses, "active = TRUE")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var entries []models.CatalogProposal
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list catalog proposals: %w", err)
	}
	return entries, nil
}

// CreateCatalog inserts a catalog proposal.
func (r *ProposalRepository) CreateCatalog(ctx context.Context, entry *models.CatalogProposal) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO catalog_proposals (id, title, description, supervisor_id, active, created_at)
        VALUES (:id, :title, :description, :supervisor_id, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create catalog proposal: %w", err)
	}
	return nil
}

// RetireCatalog clears the active flag so the entry stops being offered while
// keeping history for proposals that referenced it.
func (r *ProposalRepository) RetireCatalog(ctx context.Context, id string) error {
	const query = `UPDATE catalog_proposals SET active = FALSE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("retire catalog proposal: %w", err)
	}
	return nil
}
