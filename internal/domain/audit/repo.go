package audit

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, e *Event) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Event, int, error)
}

// Recorder is the write-side interface the lifecycle and result services
// use to append audit events without caring about storage.
type Recorder interface {
	Record(ctx context.Context, e *Event)
}
