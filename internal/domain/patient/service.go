package patient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/platform/optimistic"
)

// Service fronts the repository with a local cache of patient records. Soft
// delete and restore are applied to the cache first and rolled back when the
// store write fails.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cache map[int64]*Patient
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "patients").Logger(),
		now:    time.Now,
		cache:  make(map[int64]*Patient),
	}
}

func (s *Service) put(list ...*Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range list {
		cp := *p
		s.cache[p.ID] = &cp
	}
}

func (s *Service) cached(id int64) (*Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.cache[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// List returns active patients, newest first, and refreshes the cache.
func (s *Service) List(ctx context.Context) ([]*Patient, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	s.put(list...)
	return list, nil
}

// ListDeleted returns soft-deleted patients, most recently deleted first.
func (s *Service) ListDeleted(ctx context.Context) ([]*Patient, error) {
	list, err := s.repo.ListDeleted(ctx)
	if err != nil {
		return nil, err
	}
	s.put(list...)
	return list, nil
}

// Get returns the patient from the cache, reading through to the store on a
// miss. Deleted patients are returned too.
func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	if p, ok := s.cached(id); ok {
		return p, nil
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.put(p)
	return p, nil
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.RegistrationDate == "" {
		p.RegistrationDate = s.now().Format(dateLayout)
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	s.put(p)
	return nil
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if err := p.Validate(); err != nil {
		return err
	}
	cur, err := s.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	p.RegistrationDate = cur.RegistrationDate
	p.DeletionDate = cur.DeletionDate
	p.CreatedAt = cur.CreatedAt
	s.put(p)
	return nil
}

// SoftDelete marks the patient deleted now.
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.Deleted() {
		return invalidf("patient %d is already deleted", id)
	}
	at := s.now().UTC()
	return s.setDeletion(ctx, "soft_delete", id, &at)
}

// Restore clears the deletion mark.
func (s *Service) Restore(ctx context.Context, id int64) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.Deleted() {
		return invalidf("patient %d is not deleted", id)
	}
	return s.setDeletion(ctx, "restore", id, nil)
}

func (s *Service) setDeletion(ctx context.Context, op string, id int64, at *time.Time) error {
	err := optimistic.Do(ctx, optimistic.Rollback,
		func() func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			cur, ok := s.cache[id]
			if !ok {
				return nil
			}
			prev := cur.DeletionDate
			next := *cur
			next.DeletionDate = at
			s.cache[id] = &next
			return func() {
				s.mu.Lock()
				defer s.mu.Unlock()
				if c, ok := s.cache[id]; ok {
					r := *c
					r.DeletionDate = prev
					s.cache[id] = &r
				}
			}
		},
		func(ctx context.Context) error {
			return s.repo.SetDeletionDate(ctx, id, at)
		},
	)
	if err != nil {
		s.logger.Warn().Err(err).Str("op", op).Int64("patient_id", id).Msg("store write failed, local change rolled back")
	}
	return err
}

func (s *Service) DefaultTreatments(ctx context.Context, id int64) ([]DefaultTreatment, error) {
	return s.repo.DefaultTreatments(ctx, id)
}

func (s *Service) SaveDefaultTreatments(ctx context.Context, id int64, list []DefaultTreatment) error {
	if err := validateDefaults(list); err != nil {
		return err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.SaveDefaultTreatments(ctx, id, list)
}

// Cached returns the cached active patients ordered by name. Used for quick
// pickers that must not hit the store.
func (s *Service) Cached() []*Patient {
	s.mu.RLock()
	out := make([]*Patient, 0, len(s.cache))
	for _, p := range s.cache {
		if !p.Deleted() {
			cp := *p
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
