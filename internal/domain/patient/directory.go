package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinicdesk/frontdesk/internal/domain/treatment"
)

var _ treatment.PatientDirectory = (*Directory)(nil)

// Directory adapts the service to the board's patient lookups.
type Directory struct {
	svc *Service
}

func NewDirectory(svc *Service) *Directory {
	return &Directory{svc: svc}
}

func (d *Directory) Lookup(ctx context.Context, patientID int64) (treatment.PatientRef, error) {
	p, err := d.svc.Get(ctx, patientID)
	if err != nil {
		return treatment.PatientRef{}, boardError(patientID, err)
	}
	if p.Deleted() {
		return treatment.PatientRef{}, fmt.Errorf("%w: patient %d is deleted", treatment.ErrNotFound, patientID)
	}
	return treatment.PatientRef{ID: p.ID, Name: p.Name, ChartNumber: p.ChartNumber}, nil
}

func (d *Directory) DefaultTreatments(ctx context.Context, patientID int64) ([]treatment.TreatmentTemplate, error) {
	list, err := d.svc.DefaultTreatments(ctx, patientID)
	if err != nil {
		return nil, boardError(patientID, err)
	}
	out := make([]treatment.TreatmentTemplate, len(list))
	for i, t := range list {
		out[i] = treatment.TreatmentTemplate{Name: t.Name, DurationMinutes: t.Duration, Memo: t.Memo}
	}
	return out, nil
}

func boardError(patientID int64, err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: patient %d", treatment.ErrNotFound, patientID)
	}
	return err
}
