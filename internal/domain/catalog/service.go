package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/lims/lims/internal/platform/laberr"
)

type Service struct {
	specimenTypes SpecimenTypeRepository
	testTypes     TestTypeRepository
	instruments   InstrumentRepository
	assignments   AssignmentRepository
}

func NewService(st SpecimenTypeRepository, tt TestTypeRepository, in InstrumentRepository, as AssignmentRepository) *Service {
	return &Service{specimenTypes: st, testTypes: tt, instruments: in, assignments: as}
}

// -- SpecimenType --

func (s *Service) CreateSpecimenType(ctx context.Context, st *SpecimenType) error {
	if st.Name == "" {
		return laberr.E(laberr.KindInvalidParameterDefinition, "specimen type name is required")
	}
	return s.specimenTypes.Create(ctx, st)
}

func (s *Service) GetSpecimenType(ctx context.Context, id uuid.UUID) (*SpecimenType, error) {
	return s.specimenTypes.GetByID(ctx, id)
}

func (s *Service) UpdateSpecimenType(ctx context.Context, st *SpecimenType) error {
	if st.Name == "" {
		return laberr.E(laberr.KindInvalidParameterDefinition, "specimen type name is required")
	}
	return s.specimenTypes.Update(ctx, st)
}

func (s *Service) ListSpecimenTypes(ctx context.Context, limit, offset int) ([]*SpecimenType, int, error) {
	return s.specimenTypes.List(ctx, limit, offset)
}

// -- TestType --

func (s *Service) CreateTestType(ctx context.Context, tt *TestType) error {
	if tt.Name == "" {
		return laberr.E(laberr.KindInvalidParameterDefinition, "test type name is required")
	}
	if tt.Code == "" {
		return laberr.E(laberr.KindInvalidParameterDefinition, "test type code is required")
	}
	return s.testTypes.Create(ctx, tt)
}

func (s *Service) GetTestType(ctx context.Context, id uuid.UUID) (*TestType, error) {
	return s.testTypes.GetByID(ctx, id)
}

func (s *Service) UpdateTestType(ctx context.Context, tt *TestType) error {
	if tt.Name == "" {
		return laberr.E(laberr.KindInvalidParameterDefinition, "test type name is required")
	}
	if tt.Code == "" {
		return laberr.E(laberr.KindInvalidParameterDefinition, "test type code is required")
	}
	return s.testTypes.Update(ctx, tt)
}

func (s *Service) SearchTestTypes(ctx context.Context, params map[string]string, limit, offset int) ([]*TestType, int, error) {
	return s.testTypes.Search(ctx, params, limit, offset)
}

// -- Instrument --

func (s *Service) CreateInstrument(ctx context.Context, in *Instrument) error {
	if in.Name == "" {
		return laberr.E(laberr.KindInvalidParameterDefinition, "instrument name is required")
	}
	return s.instruments.Create(ctx, in)
}

func (s *Service) GetInstrument(ctx context.Context, id uuid.UUID) (*Instrument, error) {
	return s.instruments.GetByID(ctx, id)
}

func (s *Service) UpdateInstrument(ctx context.Context, in *Instrument) error {
	if in.Name == "" {
		return laberr.E(laberr.KindInvalidParameterDefinition, "instrument name is required")
	}
	return s.instruments.Update(ctx, in)
}

func (s *Service) ListInstruments(ctx context.Context, limit, offset int) ([]*Instrument, int, error) {
	return s.instruments.List(ctx, limit, offset)
}

// -- Assignment --

// AssignSpecimenType links a specimen type to a test type. Both sides must
// exist; duplicate assignment is idempotent.
func (s *Service) AssignSpecimenType(ctx context.Context, testTypeID, specimenTypeID uuid.UUID) error {
	if _, err := s.testTypes.GetByID(ctx, testTypeID); err != nil {
		return err
	}
	if _, err := s.specimenTypes.GetByID(ctx, specimenTypeID); err != nil {
		return err
	}
	return s.assignments.Assign(ctx, testTypeID, specimenTypeID)
}

func (s *Service) UnassignSpecimenType(ctx context.Context, testTypeID, specimenTypeID uuid.UUID) error {
	return s.assignments.Unassign(ctx, testTypeID, specimenTypeID)
}

// GetAssignedSpecimenTypes returns the specimen types assigned to a test type.
func (s *Service) GetAssignedSpecimenTypes(ctx context.Context, testTypeID uuid.UUID) ([]*SpecimenType, error) {
	if _, err := s.testTypes.GetByID(ctx, testTypeID); err != nil {
		return nil, err
	}
	return s.assignments.ListByTestType(ctx, testTypeID)
}

// IsAssigned reports whether the specimen type is assigned to the test type.
// The lifecycle engine consults this during specimen acceptance.
func (s *Service) IsAssigned(ctx context.Context, testTypeID, specimenTypeID uuid.UUID) (bool, error) {
	return s.assignments.IsAssigned(ctx, testTypeID, specimenTypeID)
}
