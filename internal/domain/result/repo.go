package result

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Upsert inserts the result or, when the request already has a value
	// for the same parameter, replaces it in place.
	Upsert(ctx context.Context, r *TestResult) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*TestResult, error)
	CountByRequest(ctx context.Context, requestID uuid.UUID) (int, error)
}
