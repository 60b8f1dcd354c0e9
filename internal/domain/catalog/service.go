package catalog

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/domain/treatment"
)

var _ treatment.BasicTreatmentSource = (*Service)(nil)

type Service struct {
	repo   Repository
	logger zerolog.Logger

	mu   sync.RWMutex
	last []Item
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "catalog").Logger()}
}

func (s *Service) List(ctx context.Context) ([]Item, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.last = append([]Item(nil), items...)
	s.mu.Unlock()
	return items, nil
}

func (s *Service) Create(ctx context.Context, it *Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, it)
}

func (s *Service) Update(ctx context.Context, it *Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, it)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Reorder(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return invalidf("no items to reorder")
	}
	seen := make(map[int64]bool, len(orders))
	for _, o := range orders {
		if seen[o.ID] {
			return invalidf("item %d listed twice", o.ID)
		}
		seen[o.ID] = true
	}
	return s.repo.Reorder(ctx, orders)
}

func (s *Service) UncoveredCategories(ctx context.Context) ([]UncoveredCategory, error) {
	return s.repo.ListUncovered(ctx)
}

func (s *Service) SaveUncoveredCategories(ctx context.Context, list []UncoveredCategory) error {
	if err := validateUncovered(list); err != nil {
		return err
	}
	if err := s.repo.ReplaceUncovered(ctx, list); err != nil {
		return err
	}
	s.logger.Info().Int("categories", len(list)).Msg("uncovered categories saved")
	return nil
}

// BasicTreatments returns the catalog in display order. When the store is
// unreachable the last list read is used, and when there is none the
// built-in FallbackBasic list.
func (s *Service) BasicTreatments(ctx context.Context) ([]treatment.TreatmentTemplate, error) {
	items, err := s.List(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("treatment catalog unavailable, using last known list")
		s.mu.RLock()
		items = append([]Item(nil), s.last...)
		s.mu.RUnlock()
	}
	if len(items) == 0 {
		return append([]treatment.TreatmentTemplate(nil), FallbackBasic...), nil
	}
	out := make([]treatment.TreatmentTemplate, len(items))
	for i, it := range items {
		out[i] = treatment.TreatmentTemplate{Name: it.Name, DurationMinutes: it.DefaultDuration}
	}
	return out, nil
}
