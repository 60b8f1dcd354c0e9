package waitlist

import "context"

type Repository interface {
	// List returns waiting patients, earliest first.
	List(ctx context.Context) ([]Entry, error)
	// Add queues an active patient. A patient already waiting keeps their
	// place and added reports false.
	Add(ctx context.Context, patientID int64) (added bool, err error)
	// Remove reports whether the patient was waiting.
	Remove(ctx context.Context, patientID int64) (bool, error)
}
