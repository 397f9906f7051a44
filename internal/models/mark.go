package models

import "time"

// SubmitMarkRequest updates a mark record. A draft save keeps the record
// open; finalising locks it and requires a grade.
type SubmitMarkRequest struct {
	Grade    *float64 `json:"grade" validate:"omitempty,gte=0,lte=100"`
	Feedback *string  `json:"feedback,omitempty"`
	Finalise bool     `json:"finalise"`
}

// ProjectMark is one marker's evaluation attempt for a project. Marks are
// grouped into rounds: a round holds one record per active marker, and a new
// round is seeded when a finalised round is non-concordant.
type ProjectMark struct {
	ID          string     `db:"id" json:"id"`
	ProjectID   string     `db:"project_id" json:"project_id"`
	MarkerID    string     `db:"marker_id" json:"marker_id"`
	Round       int        `db:"round" json:"round"`
	Grade       *float64   `db:"grade" json:"grade,omitempty"`
	Feedback    *string    `db:"feedback" json:"feedback,omitempty"`
	Finalised   bool       `db:"finalised" json:"finalised"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
