package models

import "time"

// ProposalStatus is derived from the accept/reject timestamps.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "PENDING"
	ProposalAccepted ProposalStatus = "ACCEPTED"
	ProposalRejected ProposalStatus = "REJECTED"
)

// Proposal is a student's request to a supervisor to carry out a project.
type Proposal struct {
	ID                string     `db:"id" json:"id"`
	Title             string     `db:"title" json:"title"`
	Description       string     `db:"description" json:"description"`
	CatalogProposalID *string    `db:"catalog_proposal_id" json:"catalog_proposal_id,omitempty"`
	StudentID         string     `db:"student_id" json:"student_id"`
	SupervisorID      string     `db:"supervisor_id" json:"supervisor_id"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	AcceptedAt        *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	RejectedAt        *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
}

// Status derives the proposal state. Rejection takes precedence should both
// timestamps ever be set.
func (p *Proposal) Status() ProposalStatus {
	switch {
	case p.RejectedAt != nil:
		return ProposalRejected
	case p.AcceptedAt != nil:
		return ProposalAccepted
	default:
		return ProposalPending
	}
}

// ProposalFilter scopes proposal listings.
type ProposalFilter struct {
	StudentID    string
	SupervisorID string
	Status       ProposalStatus
}

// SubmitProposalRequest is the payload for a new proposal. Either a catalog
// entry is referenced, or a custom title, description and supervisor are given.
type SubmitProposalRequest struct {
	Title             string  `json:"title" validate:"required_without=CatalogProposalID,omitempty,min=3,max=200"`
	Description       string  `json:"description" validate:"required_without=CatalogProposalID"`
	SupervisorID      string  `json:"supervisor_id" validate:"required_without=CatalogProposalID"`
	CatalogProposalID *string `json:"catalog_proposal_id,omitempty"`
}

// ProposalActionRequest carries the supervisor's decision on a proposal.
type ProposalActionRequest struct {
	Action string `json:"action" validate:"required"`
}

// CreateCatalogProposalRequest is the payload for a catalog entry.
type CreateCatalogProposalRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"required"`
}

// CatalogProposal is a supervisor-authored template students can adopt.
type CatalogProposal struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	SupervisorID string    `db:"supervisor_id" json:"supervisor_id"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
