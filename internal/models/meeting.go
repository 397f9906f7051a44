package models

import "time"

// Meeting records a supervisor and student meeting for a project.
type Meeting struct {
	ID           string     `db:"id" json:"id"`
	ProjectID    string     `db:"project_id" json:"project_id"`
	StartsAt     time.Time  `db:"starts_at" json:"starts_at"`
	EndsAt       *time.Time `db:"ends_at" json:"ends_at,omitempty"`
	Location     *string    `db:"location" json:"location,omitempty"`
	Attended     bool       `db:"attended" json:"attended"`
	OutcomeNotes *string    `db:"outcome_notes" json:"outcome_notes,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// HasStarted reports whether the meeting start time has passed.
func (m *Meeting) HasStarted() bool {
	return !m.StartsAt.After(time.Now())
}

// CreateMeetingRequest schedules a supervision meeting.
type CreateMeetingRequest struct {
	StartsAt time.Time  `json:"starts_at" validate:"required"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
	Location *string    `json:"location,omitempty"`
}

// UpdateMeetingRequest records attendance and outcomes after the fact.
type UpdateMeetingRequest struct {
	StartsAt     *time.Time `json:"starts_at,omitempty"`
	EndsAt       *time.Time `json:"ends_at,omitempty"`
	Location     *string    `json:"location,omitempty"`
	Attended     *bool      `json:"attended,omitempty"`
	OutcomeNotes *string    `json:"outcome_notes,omitempty"`
}
