package request

import (
	"time"

	"github.com/google/uuid"
)

// Status is the closed enumeration of test request lifecycle states.
type Status string

const (
	StatusPending           Status = "Pending"
	StatusSpecimenCollected Status = "SpecimenCollected"
	StatusSpecimenAccepted  Status = "SpecimenAccepted"
	StatusStarted           Status = "Started"
	StatusCompleted         Status = "Completed"
	StatusVerified          Status = "Verified"
	StatusApproved          Status = "Approved"
	StatusRejected          Status = "Rejected"
)

// transitions is the authoritative table of legal status moves. Every
// lifecycle operation validates against it before writing.
var transitions = map[Status][]Status{
	StatusPending:           {StatusSpecimenCollected, StatusRejected},
	StatusSpecimenCollected: {StatusSpecimenAccepted},
	StatusSpecimenAccepted:  {StatusStarted},
	StatusStarted:           {StatusCompleted, StatusRejected},
	StatusCompleted:         {StatusVerified, StatusRejected},
	StatusVerified:          {StatusApproved},
	StatusApproved:          {},
	StatusRejected:          {},
}

// progressOrdinals orders the happy-path states for progress display only.
// It is deliberately private: lifecycle legality comes from the transitions
// table, never from comparing ordinals.
var progressOrdinals = map[Status]int{
	StatusPending:           1,
	StatusSpecimenCollected: 2,
	StatusSpecimenAccepted:  3,
	StatusStarted:           4,
	StatusCompleted:         5,
	StatusVerified:          6,
	StatusApproved:          7,
}

// Valid reports whether s is a member of the enumeration.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// ProgressOrdinal returns the 1-based position of s on the happy path, or 0
// for Rejected.
func (s Status) ProgressOrdinal() int {
	return progressOrdinals[s]
}

// CanTransition reports whether the from -> to move appears in the table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TestRequest maps to the test_request table: one ordered laboratory test
// for a patient visit, tracked through its lifecycle. Requests are never
// physically deleted.
type TestRequest struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	VisitID         *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	TestTypeID      uuid.UUID  `db:"test_type_id" json:"test_type_id"`
	SpecimenTypeID  *uuid.UUID `db:"specimen_type_id" json:"specimen_type_id,omitempty"`
	SpecimenBarcode string     `db:"specimen_barcode" json:"specimen_barcode"`
	Status          Status     `db:"status" json:"status"`
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CollectedBy     *string    `db:"specimen_collected_by" json:"specimen_collected_by,omitempty"`
	CollectedAt     *time.Time `db:"specimen_collected_at" json:"specimen_collected_at,omitempty"`
	AcceptedBy      *string    `db:"specimen_accepted_by" json:"specimen_accepted_by,omitempty"`
	AcceptedAt      *time.Time `db:"specimen_accepted_at" json:"specimen_accepted_at,omitempty"`
	TestedBy        *string    `db:"tested_by" json:"tested_by,omitempty"`
	TestedAt        *time.Time `db:"tested_at" json:"tested_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	VerifiedBy      *string    `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt      *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	ApprovedBy      *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	RejectedBy      *string    `db:"rejected_by" json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
	VersionID       int        `db:"version_id" json:"version_id"`
	CreatedBy       string     `db:"created_by" json:"created_by"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// GetVersionID returns the current version.
func (tr *TestRequest) GetVersionID() int { return tr.VersionID }

// SetVersionID sets the current version.
func (tr *TestRequest) SetVersionID(v int) { tr.VersionID = v }

// StatusHistory records one status transition of a test request.
type StatusHistory struct {
	ID            uuid.UUID `db:"id" json:"id"`
	TestRequestID uuid.UUID `db:"test_request_id" json:"test_request_id"`
	FromStatus    Status    `db:"from_status" json:"from_status"`
	ToStatus      Status    `db:"to_status" json:"to_status"`
	ChangedBy     string    `db:"changed_by" json:"changed_by"`
	ChangedAt     time.Time `db:"changed_at" json:"changed_at"`
	Reason        *string   `db:"reason" json:"reason,omitempty"`
}
