package request

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, tr *TestRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*TestRequest, error)
	// UpdateTransition persists tr with a compare-and-swap on the version
	// the caller read. On success tr.VersionID is advanced; a lost race
	// returns an invalid_transition error and writes nothing.
	UpdateTransition(ctx context.Context, tr *TestRequest) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*TestRequest, int, error)
}

type StatusHistoryRepository interface {
	Create(ctx context.Context, h *StatusHistory) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*StatusHistory, error)
}
