package catalog

import (
	"context"

	"github.com/google/uuid"
)

type SpecimenTypeRepository interface {
	Create(ctx context.Context, st *SpecimenType) error
	GetByID(ctx context.Context, id uuid.UUID) (*SpecimenType, error)
	Update(ctx context.Context, st *SpecimenType) error
	List(ctx context.Context, limit, offset int) ([]*SpecimenType, int, error)
}

type TestTypeRepository interface {
	Create(ctx context.Context, tt *TestType) error
	GetByID(ctx context.Context, id uuid.UUID) (*TestType, error)
	Update(ctx context.Context, tt *TestType) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*TestType, int, error)
}

type InstrumentRepository interface {
	Create(ctx context.Context, in *Instrument) error
	GetByID(ctx context.Context, id uuid.UUID) (*Instrument, error)
	Update(ctx context.Context, in *Instrument) error
	List(ctx context.Context, limit, offset int) ([]*Instrument, int, error)
}

type AssignmentRepository interface {
	Assign(ctx context.Context, testTypeID, specimenTypeID uuid.UUID) error
	Unassign(ctx context.Context, testTypeID, specimenTypeID uuid.UUID) error
	ListByTestType(ctx context.Context, testTypeID uuid.UUID) ([]*SpecimenType, error)
	IsAssigned(ctx context.Context, testTypeID, specimenTypeID uuid.UUID) (bool, error)
}
