package reservation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// List returns reservations dated from..to inclusive, by date and time,
	// with their treatments.
	List(ctx context.Context, from, to string) ([]*Reservation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	// Create stores the reservation and its treatments together.
	Create(ctx context.Context, r *Reservation) error
	// Update changes the slot, doctor and memo.
	Update(ctx context.Context, r *Reservation) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// Delete removes the treatments and then the reservation.
	Delete(ctx context.Context, id uuid.UUID) error

	Treatments(ctx context.Context, id uuid.UUID) ([]Treatment, error)
	AddTreatments(ctx context.Context, id uuid.UUID, list []Treatment) error
	DeleteTreatments(ctx context.Context, id uuid.UUID) error
}
