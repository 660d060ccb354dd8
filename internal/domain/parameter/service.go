package parameter

import (
	"context"

	"github.com/google/uuid"
)

// TestTypeChecker reports whether a test type exists. The catalog domain
// implements it; main wires the adapter.
type TestTypeChecker interface {
	TestTypeExists(ctx context.Context, testTypeID uuid.UUID) error
}

type Service struct {
	params    Repository
	testTypes TestTypeChecker
}

func NewService(params Repository, testTypes TestTypeChecker) *Service {
	return &Service{params: params, testTypes: testTypes}
}

// AddParameter validates the definition and appends it to the test type's
// ordered parameter list.
func (s *Service) AddParameter(ctx context.Context, testTypeID uuid.UUID, p *ResultParameter) error {
	if err := s.testTypes.TestTypeExists(ctx, testTypeID); err != nil {
		return err
	}
	p.TestTypeID = testTypeID
	if err := p.Validate(); err != nil {
		return err
	}
	count, err := s.params.CountByTestType(ctx, testTypeID)
	if err != nil {
		return err
	}
	p.Position = count + 1
	return s.params.Create(ctx, p)
}

// UpdateParameter re-validates and replaces an existing definition. Result
// rows already recorded keep the snapshot taken at entry time; edits only
// affect future captures.
func (s *Service) UpdateParameter(ctx context.Context, id uuid.UUID, p *ResultParameter) error {
	existing, err := s.params.GetByID(ctx, id)
	if err != nil {
		return err
	}
	p.ID = existing.ID
	p.TestTypeID = existing.TestTypeID
	p.Position = existing.Position
	if err := p.Validate(); err != nil {
		return err
	}
	return s.params.Update(ctx, p)
}

// DeleteParameter removes a definition from future use. Recorded results
// are untouched; they carry their own snapshot.
func (s *Service) DeleteParameter(ctx context.Context, id uuid.UUID) error {
	return s.params.Delete(ctx, id)
}

func (s *Service) GetParameter(ctx context.Context, id uuid.UUID) (*ResultParameter, error) {
	return s.params.GetByID(ctx, id)
}

// ListByTestType returns the test type's parameters in display order.
func (s *Service) ListByTestType(ctx context.Context, testTypeID uuid.UUID) ([]*ResultParameter, error) {
	if err := s.testTypes.TestTypeExists(ctx, testTypeID); err != nil {
		return nil, err
	}
	return s.params.ListByTestType(ctx, testTypeID)
}

func (s *Service) CountByTestType(ctx context.Context, testTypeID uuid.UUID) (int, error) {
	return s.params.CountByTestType(ctx, testTypeID)
}
