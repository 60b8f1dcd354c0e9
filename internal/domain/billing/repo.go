package billing

import "context"

type Repository interface {
	// PatientExists reports whether an active patient has this id.
	PatientExists(ctx context.Context, patientID int64) (bool, error)
	CreatePending(ctx context.Context, p *Payment) error
	// ListPending returns open payments, oldest first.
	ListPending(ctx context.Context) ([]*Payment, error)
	// ListCompleted returns up to limit settled payments, newest first.
	ListCompleted(ctx context.Context, limit int) ([]*Payment, error)
	Complete(ctx context.Context, id int64, s Settlement) (*Payment, error)
}
