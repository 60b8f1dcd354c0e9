package waitlist

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/domain/treatment"
)

var _ treatment.WaitingList = (*Service)(nil)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "waitlist").Logger()}
}

func (s *Service) List(ctx context.Context) ([]Entry, error) {
	return s.repo.List(ctx)
}

// Add queues the patient at the back. Adding a patient who is already
// waiting is a no-op.
func (s *Service) Add(ctx context.Context, patientID int64) error {
	if patientID <= 0 {
		return invalidf("patient_id is required")
	}
	added, err := s.repo.Add(ctx, patientID)
	if err != nil {
		return err
	}
	if added {
		s.logger.Debug().Int64("patient_id", patientID).Msg("patient waiting")
	}
	return nil
}

// Remove takes the patient off the list. A patient who is not waiting is
// not an error, since the board removes on every assignment.
func (s *Service) Remove(ctx context.Context, patientID int64) error {
	_, err := s.repo.Remove(ctx, patientID)
	return err
}

// Withdraw is Remove for the front desk, where a missing patient is worth
// reporting.
func (s *Service) Withdraw(ctx context.Context, patientID int64) error {
	removed, err := s.repo.Remove(ctx, patientID)
	if err != nil {
		return err
	}
	if !removed {
		return notFoundf("patient %d is not waiting", patientID)
	}
	return nil
}
