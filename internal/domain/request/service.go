package request

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lims/lims/internal/domain/audit"
	"github.com/lims/lims/internal/platform/laberr"
)

// CatalogChecker is the slice of the catalog the lifecycle engine consults.
// The catalog domain implements it; main wires the adapter.
type CatalogChecker interface {
	TestTypeExists(ctx context.Context, testTypeID uuid.UUID) error
	IsSpecimenTypeAssigned(ctx context.Context, testTypeID, specimenTypeID uuid.UUID) (bool, error)
}

// ResultCounter reports how many results are captured for a request. The
// result domain implements it; the Verify guard depends on it.
type ResultCounter interface {
	CountByRequest(ctx context.Context, requestID uuid.UUID) (int, error)
}

// ResultLister returns the captured results of a request for the embedded
// read view. The concrete element type lives in the result domain.
type ResultLister interface {
	ListByRequest(ctx context.Context, requestID uuid.UUID) (interface{}, error)
}

// TxRunner runs a function inside a storage transaction so a transition and
// its history row commit or roll back together.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	requests Repository
	history  StatusHistoryRepository
	catalog  CatalogChecker
	results  ResultCounter
	auditor  audit.Recorder
	tx       TxRunner
}

func NewService(requests Repository, history StatusHistoryRepository, catalog CatalogChecker, results ResultCounter, auditor audit.Recorder, tx TxRunner) *Service {
	return &Service{requests: requests, history: history, catalog: catalog, results: results, auditor: auditor, tx: tx}
}

func newSpecimenBarcode() string {
	return "LAB-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func invalidTransition(tr *TestRequest, operation string) error {
	return laberr.E(laberr.KindInvalidTransition,
		"%s is not allowed while test request %s is %s", operation, tr.ID, tr.Status).
		WithDetail("current_status", string(tr.Status)).
		WithDetail("operation", operation)
}

// commitTransition persists the mutated request with a compare-and-swap and
// appends the history row in the same transaction. A lost race surfaces as
// invalid_transition from the repository and nothing is written.
func (s *Service) commitTransition(ctx context.Context, tr *TestRequest, from Status, actor string, reason *string) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.requests.UpdateTransition(ctx, tr); err != nil {
			return err
		}
		return s.history.Create(ctx, &StatusHistory{
			TestRequestID: tr.ID,
			FromStatus:    from,
			ToStatus:      tr.Status,
			ChangedBy:     actor,
			ChangedAt:     time.Now().UTC(),
			Reason:        reason,
		})
	})
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, entityID uuid.UUID, detail string) {
	e := &audit.Event{
		Actor:      actor,
		Action:     action,
		EntityType: "test_request",
		EntityID:   entityID,
	}
	if detail != "" {
		e.Detail = &detail
	}
	s.auditor.Record(ctx, e)
}

// CreateTestRequest is the ordering entry point: a new request starts in
// Pending with a generated specimen barcode.
func (s *Service) CreateTestRequest(ctx context.Context, patientID uuid.UUID, visitID *uuid.UUID, testTypeID uuid.UUID, actor string) (*TestRequest, error) {
	if patientID == uuid.Nil {
		return nil, laberr.E(laberr.KindNotFound, "patient id is required")
	}
	if err := s.catalog.TestTypeExists(ctx, testTypeID); err != nil {
		return nil, err
	}
	tr := &TestRequest{
		PatientID:       patientID,
		VisitID:         visitID,
		TestTypeID:      testTypeID,
		SpecimenBarcode: newSpecimenBarcode(),
		Status:          StatusPending,
		CreatedBy:       actor,
	}
	if err := s.requests.Create(ctx, tr); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "CreateTestRequest", tr.ID, "")
	return tr, nil
}

// CollectSpecimen marks the physical sample as drawn.
func (s *Service) CollectSpecimen(ctx context.Context, requestID uuid.UUID, actor string) (*TestRequest, error) {
	tr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if tr.Status != StatusPending {
		return nil, invalidTransition(tr, "CollectSpecimen")
	}
	from := tr.Status
	now := time.Now().UTC()
	tr.Status = StatusSpecimenCollected
	tr.CollectedBy = &actor
	tr.CollectedAt = &now
	if err := s.commitTransition(ctx, tr, from, actor, nil); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "CollectSpecimen", tr.ID, "")
	return tr, nil
}

// AcceptSpecimen records receipt of the sample in the lab. The specimen type
// must be assigned to the request's test type.
func (s *Service) AcceptSpecimen(ctx context.Context, requestID, specimenTypeID uuid.UUID, actor string) (*TestRequest, error) {
	tr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if tr.Status != StatusSpecimenCollected {
		return nil, invalidTransition(tr, "AcceptSpecimen")
	}
	assigned, err := s.catalog.IsSpecimenTypeAssigned(ctx, tr.TestTypeID, specimenTypeID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, laberr.E(laberr.KindUnassignedSpecimenType,
			"specimen type %s is not assigned to test type %s", specimenTypeID, tr.TestTypeID)
	}
	from := tr.Status
	now := time.Now().UTC()
	tr.Status = StatusSpecimenAccepted
	tr.SpecimenTypeID = &specimenTypeID
	tr.AcceptedBy = &actor
	tr.AcceptedAt = &now
	if err := s.commitTransition(ctx, tr, from, actor, nil); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "AcceptSpecimen", tr.ID, "specimen_type="+specimenTypeID.String())
	return tr, nil
}

// StartAnalysis moves an accepted request onto the bench.
func (s *Service) StartAnalysis(ctx context.Context, requestID uuid.UUID, actor string) (*TestRequest, error) {
	tr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if tr.Status != StatusSpecimenAccepted {
		return nil, invalidTransition(tr, "StartAnalysis")
	}
	from := tr.Status
	now := time.Now().UTC()
	tr.Status = StatusStarted
	tr.TestedBy = &actor
	tr.TestedAt = &now
	if err := s.commitTransition(ctx, tr, from, actor, nil); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "StartAnalysis", tr.ID, "")
	return tr, nil
}

// Complete flips a Started request to Completed. The result capture engine
// calls it on first submission, inside its own transaction.
func (s *Service) Complete(ctx context.Context, tr *TestRequest, actor string) error {
	if tr.Status != StatusStarted {
		return invalidTransition(tr, "Complete")
	}
	from := tr.Status
	now := time.Now().UTC()
	tr.Status = StatusCompleted
	tr.CompletedAt = &now
	if err := s.commitTransition(ctx, tr, from, actor, nil); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "Complete", tr.ID, "")
	return nil
}

// MarkResultsUpdated bumps the request version without changing status. A
// result re-submission calls it inside its transaction so the batch
// serializes against concurrent transitions: a verify that committed first
// wins the version race and the whole batch rolls back.
func (s *Service) MarkResultsUpdated(ctx context.Context, tr *TestRequest, actor string) error {
	if tr.Status != StatusCompleted {
		return invalidTransition(tr, "SubmitResults")
	}
	return s.requests.UpdateTransition(ctx, tr)
}

// VerifyResults confirms captured results. At least one result must exist.
func (s *Service) VerifyResults(ctx context.Context, requestID uuid.UUID, actor string) (*TestRequest, error) {
	tr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if tr.Status != StatusCompleted {
		return nil, invalidTransition(tr, "VerifyResults")
	}
	count, err := s.results.CountByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, laberr.E(laberr.KindInvalidTransition,
			"test request %s has no captured results to verify", requestID).
			WithDetail("current_status", string(tr.Status)).
			WithDetail("operation", "VerifyResults")
	}
	from := tr.Status
	now := time.Now().UTC()
	tr.Status = StatusVerified
	tr.VerifiedBy = &actor
	tr.VerifiedAt = &now
	if err := s.commitTransition(ctx, tr, from, actor, nil); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "VerifyResults", tr.ID, "")
	return tr, nil
}

// ApproveResults is the final sign-off; Approved is terminal.
func (s *Service) ApproveResults(ctx context.Context, requestID uuid.UUID, actor string) (*TestRequest, error) {
	tr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if tr.Status != StatusVerified {
		return nil, invalidTransition(tr, "ApproveResults")
	}
	from := tr.Status
	now := time.Now().UTC()
	tr.Status = StatusApproved
	tr.ApprovedBy = &actor
	tr.ApprovedAt = &now
	if err := s.commitTransition(ctx, tr, from, actor, nil); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "ApproveResults", tr.ID, "")
	return tr, nil
}

// Reject invalidates a request before verification. A non-empty reason is
// part of the guard.
func (s *Service) Reject(ctx context.Context, requestID uuid.UUID, reason, actor string) (*TestRequest, error) {
	tr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(tr.Status, StatusRejected) {
		return nil, invalidTransition(tr, "Reject")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, laberr.E(laberr.KindInvalidTransition,
			"rejecting test request %s requires a reason", requestID).
			WithDetail("current_status", string(tr.Status)).
			WithDetail("operation", "Reject")
	}
	from := tr.Status
	now := time.Now().UTC()
	tr.Status = StatusRejected
	tr.RejectionReason = &reason
	tr.RejectedBy = &actor
	tr.RejectedAt = &now
	if err := s.commitTransition(ctx, tr, from, actor, &reason); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "Reject", tr.ID, "reason="+reason)
	return tr, nil
}

func (s *Service) GetTestRequest(ctx context.Context, requestID uuid.UUID) (*TestRequest, error) {
	return s.requests.GetByID(ctx, requestID)
}

func (s *Service) GetStatusHistory(ctx context.Context, requestID uuid.UUID) ([]*StatusHistory, error) {
	if _, err := s.requests.GetByID(ctx, requestID); err != nil {
		return nil, err
	}
	return s.history.ListByRequest(ctx, requestID)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*TestRequest, int, error) {
	return s.requests.Search(ctx, params, limit, offset)
}
