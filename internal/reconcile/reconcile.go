// Package reconcile implements the double-marking reconciliation rules: how
// pairs of independent marks resolve into a final grade and how the derived
// project status follows from the mark history. All functions are pure.
package reconcile

import (
	"errors"
	"math"
	"sort"

	"github.com/campushub/dissertation-api/internal/models"
)

// GradeTolerance is the maximum difference between two marks of a round for
// them to count as concordant.
const GradeTolerance = 5.0

// ErrNoConcordantMarks signals that no reconciled grade can be derived yet.
// It is an internal control-flow signal, translated into a project status by
// callers and never returned raw to the HTTP boundary.
var ErrNoConcordantMarks = errors.New("no concordant marks for project")

// FinalGrade computes the reconciled grade from a project's mark records.
//
// Only finalised marks participate. A zero or odd count means at least one
// round is incomplete, so no decision is possible. Rounds are scanned in
// ascending order and the first concordant pair wins: a later discordant
// round never overrides an earlier agreement.
func FinalGrade(marks []models.ProjectMark) (float64, error) {
	finalised := finalisedMarks(marks)
	if len(finalised) == 0 || len(finalised)%2 != 0 {
		return 0, ErrNoConcordantMarks
	}

	for i := 0; i+1 < len(finalised); i += 2 {
		m1, m2 := finalised[i], finalised[i+1]
		if m1.Grade == nil || m2.Grade == nil {
			continue
		}
		if math.Abs(*m1.Grade-*m2.Grade) <= GradeTolerance {
			return (*m1.Grade + *m2.Grade) / 2, nil
		}
	}
	return 0, ErrNoConcordantMarks
}

// Status derives the project lifecycle state from its submission timestamps
// and mark records.
func Status(project *models.Project, marks []models.ProjectMark) models.ProjectStatus {
	if project.IsArchived() {
		return models.ProjectArchived
	}
	if !project.IsSubmitted() {
		return models.ProjectActive
	}
	if _, err := FinalGrade(marks); err == nil {
		return models.ProjectMarksConfirmed
	}
	for _, m := range marks {
		if m.Finalised {
			return models.ProjectMarking
		}
	}
	return models.ProjectSubmitted
}

// NextRoundSeeds determines whether a fresh marking round is due and, if so,
// which markers need a new pending record. A round is due when the finalised
// set is even, at least one pair exists and no pair is concordant. The two
// markers of the latest finalised round are re-seeded, skipping any marker
// that already holds a pending record (idempotent retry guard).
func NextRoundSeeds(marks []models.ProjectMark) (round int, markerIDs []string) {
	finalised := finalisedMarks(marks)
	if len(finalised) < 2 || len(finalised)%2 != 0 {
		return 0, nil
	}
	if _, err := FinalGrade(marks); err == nil {
		return 0, nil
	}

	pending := make(map[string]bool)
	maxRound := 0
	for _, m := range marks {
		if !m.Finalised {
			pending[m.MarkerID] = true
		}
		if m.Round > maxRound {
			maxRound = m.Round
		}
	}

	last := finalised[len(finalised)-2:]
	for _, m := range last {
		if !pending[m.MarkerID] {
			markerIDs = append(markerIDs, m.MarkerID)
		}
	}
	if len(markerIDs) == 0 {
		return 0, nil
	}
	// Join an already open round rather than opening yet another one.
	round = maxRound + 1
	if len(pending) > 0 {
		round = maxRound
	}
	return round, markerIDs
}

// finalisedMarks returns the finalised records sorted by round, breaking ties
// by creation time and then record id so pairs line up deterministically.
func finalisedMarks(marks []models.ProjectMark) []models.ProjectMark {
	finalised := make([]models.ProjectMark, 0, len(marks))
	for _, m := range marks {
		if m.Finalised {
			finalised = append(finalised, m)
		}
	}
	sort.SliceStable(finalised, func(i, j int) bool {
		if finalised[i].Round != finalised[j].Round {
			return finalised[i].Round < finalised[j].Round
		}
		if !finalised[i].CreatedAt.Equal(finalised[j].CreatedAt) {
			return finalised[i].CreatedAt.Before(finalised[j].CreatedAt)
		}
		return finalised[i].ID < finalised[j].ID
	})
	return finalised
}
