// Package workflow implements the affiliation approval core: the
// lifecycle state machine, the requester-resolution heuristic, and the
// approve-and-promote orchestrator.
package workflow

import (
	"fmt"
	"strings"

	e "github.com/eventia/affiliations/internal/affiliation/errors"
	"github.com/eventia/affiliations/internal/affiliation/models"
)

// TransitionParams is the payload for the backend's affiliation
// transition endpoint, produced by a decision function.
type TransitionParams struct {
	Approve bool   `json:"approve"`
	Motivo  string `json:"motivo,omitempty"`
}

// allowedTransitions is the single source of truth for lifecycle
// legality. Both terminal states map to an empty set on purpose: a
// record never re-enters Pending, re-submission creates a new record.
var allowedTransitions = map[models.Status][]models.Status{
	models.StatusPending:  {models.StatusApproved, models.StatusRejected},
	models.StatusApproved: {},
	models.StatusRejected: {},
}

// CanTransition reports whether the lifecycle defines a transition
// between the two states.
func CanTransition(from, to models.Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApproveDecision checks whether the record may be approved and, if so,
// produces the transition payload. It is a pure decision function: the
// remote call belongs to the orchestrator.
func ApproveDecision(record *models.Record) (TransitionParams, error) {
	if !CanTransition(record.Status, models.StatusApproved) {
		return TransitionParams{}, fmt.Errorf(
			"%w: cannot approve affiliation %s in state %s",
			e.ErrInvalidTransition, record.ID, record.Status)
	}
	return TransitionParams{Approve: true}, nil
}

// RejectDecision checks whether the record may be rejected with the
// given reason and, if so, produces the transition payload. The reason
// is trimmed; a blank reason fails before any payload is built.
func RejectDecision(record *models.Record, reason string) (TransitionParams, error) {
	if !CanTransition(record.Status, models.StatusRejected) {
		return TransitionParams{}, fmt.Errorf(
			"%w: cannot reject affiliation %s in state %s",
			e.ErrInvalidTransition, record.ID, record.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return TransitionParams{}, fmt.Errorf(
			"%w: rejecting affiliation %s", e.ErrMissingReason, record.ID)
	}
	return TransitionParams{Approve: false, Motivo: reason}, nil
}
