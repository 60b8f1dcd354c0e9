package acting

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "acting").Logger()}
}

func (s *Service) List(ctx context.Context, doctor string) ([]*Acting, error) {
	doctor = strings.TrimSpace(doctor)
	if doctor == "" {
		return nil, invalidf("doctor is required")
	}
	return s.repo.List(ctx, doctor)
}

func (s *Service) Add(ctx context.Context, a *Acting) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := s.repo.Add(ctx, a); err != nil {
		return err
	}
	s.logger.Info().Str("doctor", a.Doctor).Int64("patient_id", a.PatientID).
		Str("type", a.Type).Int("position", a.Position).Msg("acting queued")
	return nil
}

// Update changes what is done and for how long. Doctor and patient stay.
func (s *Service) Update(ctx context.Context, a *Acting) error {
	a.Type = strings.TrimSpace(a.Type)
	if a.Type == "" {
		return invalidf("type is required")
	}
	if a.Duration <= 0 {
		return invalidf("duration must be positive, got %d", a.Duration)
	}
	return s.repo.Update(ctx, a)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Reorder(ctx context.Context, doctor string, ids []uuid.UUID) error {
	doctor = strings.TrimSpace(doctor)
	if doctor == "" {
		return invalidf("doctor is required")
	}
	if len(ids) == 0 {
		return invalidf("no actings to reorder")
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return invalidf("acting %s listed twice", id)
		}
		seen[id] = true
	}
	return s.repo.Reorder(ctx, doctor, ids)
}
