package staff

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Service struct {
	medical MedicalRepository
	staff   StaffRepository
	logger  zerolog.Logger
}

func NewService(medical MedicalRepository, staff StaffRepository, logger zerolog.Logger) *Service {
	return &Service{medical: medical, staff: staff, logger: logger.With().Str("component", "staff").Logger()}
}

// -- Medical staff --

func (s *Service) ListMedical(ctx context.Context) ([]*MedicalStaff, error) {
	return s.medical.List(ctx)
}

func (s *Service) CreateMedical(ctx context.Context, m *MedicalStaff) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.medical.Create(ctx, m); err != nil {
		return err
	}
	s.logger.Info().Int64("medical_staff_id", m.ID).Str("name", m.Name).Msg("medical staff added")
	return nil
}

func (s *Service) UpdateMedical(ctx context.Context, m *MedicalStaff) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return s.medical.Update(ctx, m)
}

func (s *Service) DeleteMedical(ctx context.Context, id int64) error {
	return s.medical.Delete(ctx, id)
}

// OnDuty returns active medical staff with a work pattern on the date's
// weekday.
func (s *Service) OnDuty(ctx context.Context, date string) ([]*MedicalStaff, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, invalidf("date must be YYYY-MM-DD, got %q", date)
	}
	all, err := s.medical.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []*MedicalStaff{}
	for _, m := range all {
		if m.Status == StatusActive && m.WorksOn(day.Weekday()) {
			out = append(out, m)
		}
	}
	return out, nil
}

// -- Staff --

func (s *Service) ListStaff(ctx context.Context) ([]*Staff, error) {
	return s.staff.List(ctx)
}

func (s *Service) CreateStaff(ctx context.Context, st *Staff) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if err := s.staff.Create(ctx, st); err != nil {
		return err
	}
	s.logger.Info().Int64("staff_id", st.ID).Str("name", st.Name).Msg("staff added")
	return nil
}

func (s *Service) UpdateStaff(ctx context.Context, st *Staff) error {
	if err := st.Validate(); err != nil {
		return err
	}
	return s.staff.Update(ctx, st)
}

func (s *Service) DeleteStaff(ctx context.Context, id int64) error {
	return s.staff.Delete(ctx, id)
}
