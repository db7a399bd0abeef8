// Package models defines the core domain models for the affiliation
// workflow: the affiliation Record, its Status lifecycle, and the
// value types exchanged with the approval orchestrator.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status represents the lifecycle state of a company's affiliation request.
type Status int

const (
	// StatusPending is the initial state; the only state transitions start from.
	StatusPending Status = iota
	// StatusApproved is terminal.
	StatusApproved
	// StatusRejected is terminal and carries a rejection reason.
	StatusRejected
)

// statusNames maps each status to its canonical wire name. The upstream
// backend encodes status either as 0/1/2 or as strings (Spanish or
// English depending on the endpoint); both forms normalize to the same
// Status value.
var statusNames = map[Status]string{
	StatusPending:  "pending",
	StatusApproved: "approved",
	StatusRejected: "rejected",
}

var statusAliases = map[string]Status{
	"pending":   StatusPending,
	"pendiente": StatusPending,
	"approved":  StatusApproved,
	"aprobada":  StatusApproved,
	"aprobado":  StatusApproved,
	"rejected":  StatusRejected,
	"rechazada": StatusRejected,
	"rechazado": StatusRejected,
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Valid reports whether s is one of the three defined states.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Terminal reports whether no transition is defined out of s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ParseStatus normalizes a string encoding of a status.
func ParseStatus(raw string) (Status, error) {
	if s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("unknown affiliation status %q", raw)
}

// MarshalJSON encodes the status under its canonical name.
func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot encode %s", s)
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts both the numeric (0/1/2) and the string
// encodings used by the upstream backend.
func (s *Status) UnmarshalJSON(data []byte) error {
	var num int
	if err := json.Unmarshal(data, &num); err == nil {
		st := Status(num)
		if !st.Valid() {
			return fmt.Errorf("unknown affiliation status code %d", num)
		}
		*s = st
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("affiliation status must be a number or a string, got %s", data)
	}
	st, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Record is one company's affiliation request as seen by this service.
// Descriptive fields are opaque; the backend owns their validation.
type Record struct {
	// ID is the backend-assigned identifier, stable for the record's lifetime.
	ID string `json:"id"`
	// Status is exactly one of the three lifecycle states.
	Status Status `json:"status"`
	// Name is the company name.
	Name string `json:"name"`
	// TaxID is the company's tax identifier (NIT).
	TaxID string `json:"taxId,omitempty"`
	// Address is the company's registered address.
	Address string `json:"address,omitempty"`
	// Phone is a contact phone number.
	Phone string `json:"phone,omitempty"`
	// Email is a contact email address.
	Email string `json:"email,omitempty"`
	// RejectionReason is set if and only if Status is StatusRejected.
	RejectionReason string `json:"rejectionReason,omitempty"`

	// Raw is the upstream object as received, undeclared fields included.
	// The requester reference hides under any of several field shapes in
	// here; see workflow.ResolveRequester.
	Raw map[string]interface{} `json:"-"`
	// Complete is true when the record came from the detail endpoint.
	// List endpoints return partial projections that may omit the
	// requester reference entirely.
	Complete bool `json:"-"`
}

// RoleManager is the role granted to a requester when their company's
// affiliation is approved.
const RoleManager = "gerente"

// PromotionRequest is the ephemeral payload for promoting the user who
// requested an affiliation. Constructed only after a successful approval;
// never persisted.
type PromotionRequest struct {
	RequesterID string `json:"requesterId"`
	CompanyID   string `json:"empresaId"`
	TargetRole  string `json:"targetRole"`
}

// NewPromotionRequest builds a manager-promotion request for a company's requester.
func NewPromotionRequest(requesterID, companyID string) PromotionRequest {
	return PromotionRequest{
		RequesterID: requesterID,
		CompanyID:   companyID,
		TargetRole:  RoleManager,
	}
}

// Outcome is the result of one step of a compound operation.
type Outcome struct {
	Success bool `json:"success"`
	// Skipped marks a deliberate no-op, not a failure: the promotion step
	// when no requester could be resolved, or after a failed approval.
	Skipped bool `json:"skipped,omitempty"`
	// Reason is a human-readable failure message.
	Reason string `json:"reason,omitempty"`
	// HTTPStatus carries the upstream status code when the failure came
	// from a remote call.
	HTTPStatus int `json:"httpStatus,omitempty"`
}

// OutcomeOK reports a successful step.
func OutcomeOK() Outcome {
	return Outcome{Success: true}
}

// OutcomeSkipped reports a deliberately not attempted step.
func OutcomeSkipped() Outcome {
	return Outcome{Skipped: true}
}

// OutcomeFailed reports a failed step with its reason and, when known,
// the upstream HTTP status.
func OutcomeFailed(reason string, httpStatus int) Outcome {
	return Outcome{Reason: reason, HTTPStatus: httpStatus}
}

// Failed reports whether the step was attempted and did not succeed.
func (o Outcome) Failed() bool {
	return !o.Success && !o.Skipped
}

// Result is the combined report of an approve-and-promote run. It is
// returned to the caller and never persisted. Approve and Promote are
// independent outcomes: a failed promotion never demotes a successful
// approval.
type Result struct {
	CompanyID   string  `json:"companyId"`
	RequesterID string  `json:"requesterId,omitempty"`
	Approve     Outcome `json:"approve"`
	Promote     Outcome `json:"promote"`
}
