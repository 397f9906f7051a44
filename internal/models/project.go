package models

import "time"

// ProjectStatus is the derived lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive         ProjectStatus = "ACTIVE"
	ProjectSubmitted      ProjectStatus = "SUBMITTED"
	ProjectMarking        ProjectStatus = "MARKING"
	ProjectMarksConfirmed ProjectStatus = "MARKS_CONFIRMED"
	ProjectArchived       ProjectStatus = "ARCHIVED"
)

// Project is created exactly once when a proposal is accepted.
type Project struct {
	ID             string     `db:"id" json:"id"`
	ProposalID     string     `db:"proposal_id" json:"proposal_id"`
	StudentID      string     `db:"student_id" json:"student_id"`
	SupervisorID   string     `db:"supervisor_id" json:"supervisor_id"`
	SecondMarkerID *string    `db:"second_marker_id" json:"second_marker_id,omitempty"`
	SubmittedAt    *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	ArchivedAt     *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// IsSubmitted reports whether the student has handed the project in.
func (p *Project) IsSubmitted() bool {
	return p.SubmittedAt != nil
}

// IsArchived reports whether the project has been archived.
func (p *Project) IsArchived() bool {
	return p.ArchivedAt != nil
}

// ProjectFilter scopes project listings.
type ProjectFilter struct {
	StudentID    string
	SupervisorID string
	MarkerID     string
	Archived     *bool
}

// AssignSecondMarkerRequest carries the marker chosen by an administrator.
type AssignSecondMarkerRequest struct {
	MarkerID string `json:"marker_id" validate:"required"`
}

// ProjectDetail is the derived read model served to clients and cached in Redis.
type ProjectDetail struct {
	Project    Project       `json:"project"`
	Status     ProjectStatus `json:"status"`
	FinalGrade *float64      `json:"final_grade,omitempty"`
	Marks      []ProjectMark `json:"marks"`
	Meetings   []Meeting     `json:"meetings"`
}
