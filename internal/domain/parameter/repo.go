package parameter

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *ResultParameter) error
	GetByID(ctx context.Context, id uuid.UUID) (*ResultParameter, error)
	Update(ctx context.Context, p *ResultParameter) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByTestType(ctx context.Context, testTypeID uuid.UUID) ([]*ResultParameter, error)
	CountByTestType(ctx context.Context, testTypeID uuid.UUID) (int, error)
}
