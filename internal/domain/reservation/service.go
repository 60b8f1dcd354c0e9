package reservation

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "reservation").Logger()}
}

// List returns the reservations dated from..to inclusive.
func (s *Service) List(ctx context.Context, from, to string) ([]*Reservation, error) {
	if err := validDate("start", from); err != nil {
		return nil, err
	}
	if err := validDate("end", to); err != nil {
		return nil, err
	}
	if to < from {
		return nil, invalidf("end %s is before start %s", to, from)
	}
	return s.repo.List(ctx, from, to)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, r *Reservation) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return err
	}
	s.logger.Info().Str("reservation_id", r.ID.String()).Int64("patient_id", r.PatientID).
		Str("doctor", r.Doctor).Str("date", r.Date).Str("time", r.Time).Msg("reservation booked")
	return nil
}

// Update moves the reservation to another slot or doctor and replaces the
// memo. Patient, status and treatments are left alone.
func (s *Service) Update(ctx context.Context, patch *Reservation) (*Reservation, error) {
	cur, err := s.repo.GetByID(ctx, patch.ID)
	if err != nil {
		return nil, err
	}
	cur.Doctor, cur.Date, cur.Time, cur.Memo = patch.Doctor, patch.Date, patch.Time, patch.Memo
	if err := cur.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, cur); err != nil {
		return nil, err
	}
	return cur, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validStatuses[status] {
		return invalidf("unknown status %q", status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.logger.Info().Str("reservation_id", id.String()).Str("status", status).Msg("reservation status changed")
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Treatments(ctx context.Context, id uuid.UUID) ([]Treatment, error) {
	return s.repo.Treatments(ctx, id)
}

func (s *Service) AddTreatments(ctx context.Context, id uuid.UUID, list []Treatment) error {
	if len(list) == 0 {
		return invalidf("no treatments to add")
	}
	if err := validateTreatments(list); err != nil {
		return err
	}
	return s.repo.AddTreatments(ctx, id, list)
}

func (s *Service) DeleteTreatments(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteTreatments(ctx, id)
}
