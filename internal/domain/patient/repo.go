package patient

import (
	"context"
	"time"
)

type Repository interface {
	List(ctx context.Context) ([]*Patient, error)
	ListDeleted(ctx context.Context) ([]*Patient, error)
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Create(ctx context.Context, p *Patient) error
	Update(ctx context.Context, p *Patient) error
	// SetDeletionDate soft deletes the patient, or restores it when at is nil.
	SetDeletionDate(ctx context.Context, id int64, at *time.Time) error
	DefaultTreatments(ctx context.Context, patientID int64) ([]DefaultTreatment, error)
	// SaveDefaultTreatments replaces the whole list.
	SaveDefaultTreatments(ctx context.Context, patientID int64, list []DefaultTreatment) error
}
