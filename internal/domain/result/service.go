package result

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lims/lims/internal/domain/audit"
	"github.com/lims/lims/internal/domain/parameter"
	"github.com/lims/lims/internal/domain/request"
	"github.com/lims/lims/internal/platform/laberr"
)

// RequestGateway is the slice of the lifecycle engine the capture engine
// needs: load a request, complete it on first submission, and bump its
// version on re-submission so the batch serializes against concurrent
// transitions. *request.Service satisfies it.
type RequestGateway interface {
	GetTestRequest(ctx context.Context, requestID uuid.UUID) (*request.TestRequest, error)
	Complete(ctx context.Context, tr *request.TestRequest, actor string) error
	MarkResultsUpdated(ctx context.Context, tr *request.TestRequest, actor string) error
}

// ParameterSource lists the configured parameters of a test type.
type ParameterSource interface {
	ListByTestType(ctx context.Context, testTypeID uuid.UUID) ([]*parameter.ResultParameter, error)
}

// InstrumentChecker verifies a referenced analyzer exists in the catalog.
type InstrumentChecker interface {
	InstrumentExists(ctx context.Context, instrumentID uuid.UUID) error
}

// TxRunner runs a function inside a storage transaction so a batch of
// results and the completion transition commit or roll back together.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ResultEntry is one raw value in a submission batch.
type ResultEntry struct {
	ParameterID uuid.UUID `json:"parameter_id"`
	Value       string    `json:"value"`
}

type Service struct {
	results     Repository
	requests    RequestGateway
	params      ParameterSource
	instruments InstrumentChecker
	auditor     audit.Recorder
	tx          TxRunner
}

func NewService(results Repository, requests RequestGateway, params ParameterSource, instruments InstrumentChecker, auditor audit.Recorder, tx TxRunner) *Service {
	return &Service{results: results, requests: requests, params: params, instruments: instruments, auditor: auditor, tx: tx}
}

// snapshotOf deep-copies a parameter definition so later catalog edits
// cannot reach into stored results.
func snapshotOf(p *parameter.ResultParameter) parameter.ResultParameter {
	cp := *p
	if p.Numeric != nil {
		n := *p.Numeric
		cp.Numeric = &n
	}
	if p.Code != nil {
		c := *p.Code
		cp.Code = &c
	}
	return cp
}

// SubmitResults validates and stores a batch of values for a request,
// captured against a registered instrument. The whole batch is checked
// before anything is written: one bad entry rejects the submission and
// leaves storage untouched. The first submission against a Started request
// also completes it, in the same transaction.
func (s *Service) SubmitResults(ctx context.Context, requestID, instrumentID uuid.UUID, entries []ResultEntry, actor string) ([]*TestResult, error) {
	tr, err := s.requests.GetTestRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if tr.Status != request.StatusStarted && tr.Status != request.StatusCompleted {
		return nil, laberr.E(laberr.KindInvalidTransition,
			"results cannot be submitted while test request %s is %s", tr.ID, tr.Status).
			WithDetail("current_status", string(tr.Status)).
			WithDetail("operation", "SubmitResults")
	}
	if len(entries) == 0 {
		return nil, laberr.E(laberr.KindInvalidResultValue, "at least one result entry is required")
	}
	if err := s.instruments.InstrumentExists(ctx, instrumentID); err != nil {
		return nil, err
	}

	params, err := s.params.ListByTestType(ctx, tr.TestTypeID)
	if err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return nil, laberr.E(laberr.KindMissingParameterConfiguration,
			"test type %s has no configured result parameters", tr.TestTypeID)
	}
	byID := make(map[uuid.UUID]*parameter.ResultParameter, len(params))
	for _, p := range params {
		byID[p.ID] = p
	}

	prepared := make([]*TestResult, 0, len(entries))
	seen := make(map[uuid.UUID]bool, len(entries))
	for _, entry := range entries {
		p, ok := byID[entry.ParameterID]
		if !ok {
			return nil, laberr.E(laberr.KindNotFound,
				"parameter %s is not configured for test type %s", entry.ParameterID, tr.TestTypeID)
		}
		if seen[entry.ParameterID] {
			return nil, laberr.E(laberr.KindInvalidResultValue,
				"duplicate entry for parameter %q", p.Name)
		}
		seen[entry.ParameterID] = true
		value := strings.TrimSpace(entry.Value)
		if value == "" {
			return nil, laberr.E(laberr.KindInvalidResultValue,
				"empty value for parameter %q", p.Name)
		}
		interpretation, err := Interpret(p, value)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, &TestResult{
			TestRequestID:     tr.ID,
			ParameterID:       p.ID,
			ParameterSnapshot: snapshotOf(p),
			Value:             value,
			Interpretation:    interpretation,
			InstrumentID:      instrumentID,
			EnteredBy:         actor,
		})
	}

	// The request row is CASed first in both paths, so a transition that
	// committed after the guard read (a concurrent verify, reject) loses us
	// the version race and the whole batch rolls back untouched.
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if tr.Status == request.StatusStarted {
			if err := s.requests.Complete(ctx, tr, actor); err != nil {
				return err
			}
		} else if err := s.requests.MarkResultsUpdated(ctx, tr, actor); err != nil {
			return err
		}
		for _, res := range prepared {
			if err := s.results.Upsert(ctx, res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	detail := fmt.Sprintf("entries=%d", len(prepared))
	s.auditor.Record(ctx, &audit.Event{
		Actor:      actor,
		Action:     "SubmitResults",
		EntityType: "test_request",
		EntityID:   tr.ID,
		Detail:     &detail,
	})
	return prepared, nil
}

// ListResults returns the captured results of a request in entry order.
func (s *Service) ListResults(ctx context.Context, requestID uuid.UUID) ([]*TestResult, error) {
	if _, err := s.requests.GetTestRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.results.ListByRequest(ctx, requestID)
}

// CountByRequest reports how many results a request carries.
func (s *Service) CountByRequest(ctx context.Context, requestID uuid.UUID) (int, error) {
	return s.results.CountByRequest(ctx, requestID)
}
