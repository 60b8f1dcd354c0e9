package billing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/domain/treatment"
)

var _ treatment.Billing = (*Service)(nil)

// DefaultCompletedLimit caps the completed payments list.
const DefaultCompletedLimit = 100

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "billing").Logger()}
}

// Handoff opens a pending payment for a patient whose session finished.
func (s *Service) Handoff(ctx context.Context, patientID int64) error {
	_, err := s.Open(ctx, patientID, nil)
	return err
}

// Open creates a pending payment listing the billed treatments.
func (s *Service) Open(ctx context.Context, patientID int64, items []string) (*Payment, error) {
	if patientID <= 0 {
		return nil, invalidf("patient_id is required")
	}
	ok, err := s.repo.PatientExists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: patient %d", treatment.ErrNotFound, patientID)
	}
	if items == nil {
		items = []string{}
	}
	p := &Payment{PatientID: patientID, Methods: []MethodShare{}, TreatmentItems: items}
	if err := s.repo.CreatePending(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("patient_id", patientID).Int64("payment_id", p.ID).Msg("payment opened")
	return p, nil
}

func (s *Service) ListPending(ctx context.Context) ([]*Payment, error) {
	return s.repo.ListPending(ctx)
}

func (s *Service) ListCompleted(ctx context.Context, limit int) ([]*Payment, error) {
	if limit <= 0 || limit > DefaultCompletedLimit {
		limit = DefaultCompletedLimit
	}
	return s.repo.ListCompleted(ctx, limit)
}

func (s *Service) Complete(ctx context.Context, id int64, st Settlement) (*Payment, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}
	if st.Methods == nil {
		st.Methods = []MethodShare{}
	}
	p, err := s.repo.Complete(ctx, id, st)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("payment_id", id).Int64("paid", p.PaidAmount).Int64("remaining", p.RemainingAmount).Msg("payment completed")
	return p, nil
}
