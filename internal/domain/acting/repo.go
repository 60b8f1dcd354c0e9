package acting

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// List returns the doctor's queue by position.
	List(ctx context.Context, doctor string) ([]*Acting, error)
	// Add appends to the end of the doctor's queue and fills ID and Position.
	Add(ctx context.Context, a *Acting) error
	Update(ctx context.Context, a *Acting) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Reorder sets positions to the order of ids. An id outside the doctor's
	// queue aborts the whole batch.
	Reorder(ctx context.Context, doctor string, ids []uuid.UUID) error
}
