package staff

import "context"

type MedicalRepository interface {
	// List returns medical staff by id.
	List(ctx context.Context) ([]*MedicalStaff, error)
	Create(ctx context.Context, m *MedicalStaff) error
	Update(ctx context.Context, m *MedicalStaff) error
	Delete(ctx context.Context, id int64) error
}

type StaffRepository interface {
	// List returns staff by id.
	List(ctx context.Context) ([]*Staff, error)
	Create(ctx context.Context, s *Staff) error
	Update(ctx context.Context, s *Staff) error
	Delete(ctx context.Context, id int64) error
}
