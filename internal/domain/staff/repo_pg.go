package staff

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

const profileCols = `name, COALESCE(to_char(dob, 'YYYY-MM-DD'), ''), COALESCE(gender, ''),
	COALESCE(to_char(hire_date, 'YYYY-MM-DD'), ''), COALESCE(to_char(fire_date, 'YYYY-MM-DD'), ''),
	status, permissions`

func decodeProfile(p *Profile, permissions []byte) error {
	p.Permissions = map[string]bool{}
	if len(permissions) == 0 {
		return nil
	}
	return json.Unmarshal(permissions, &p.Permissions)
}

// =========== Medical staff ===========

type medicalRepoPG struct{ pool db.DB }

func NewMedicalRepo(pool db.DB) MedicalRepository { return &medicalRepoPG{pool: pool} }

func scanMedical(row pgx.Row) (*MedicalStaff, error) {
	var (
		m                   MedicalStaff
		permissions, worked []byte
	)
	if err := row.Scan(&m.ID, &m.Name, &m.DOB, &m.Gender, &m.HireDate, &m.FireDate, &m.Status,
		&permissions, &worked, &m.ConsultationRoom); err != nil {
		return nil, err
	}
	if err := decodeProfile(&m.Profile, permissions); err != nil {
		return nil, fmt.Errorf("decode permissions of medical staff %d: %w", m.ID, err)
	}
	m.WorkPatterns = []WorkPattern{}
	if len(worked) > 0 {
		if err := json.Unmarshal(worked, &m.WorkPatterns); err != nil {
			return nil, fmt.Errorf("decode work patterns of medical staff %d: %w", m.ID, err)
		}
	}
	return &m, nil
}

func (r *medicalRepoPG) List(ctx context.Context) ([]*MedicalStaff, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, `+profileCols+`, work_patterns, COALESCE(consultation_room, '')
		FROM medical_staff ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query medical staff: %w", err)
	}
	defer rows.Close()

	out := []*MedicalStaff{}
	for rows.Next() {
		m, err := scanMedical(rows)
		if err != nil {
			return nil, fmt.Errorf("scan medical staff: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *medicalRepoPG) Create(ctx context.Context, m *MedicalStaff) error {
	permissions, worked, err := encodeMedical(m)
	if err != nil {
		return err
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medical_staff (
			name, dob, gender, hire_date, fire_date, status, permissions, work_patterns, consultation_room
		) VALUES (
			$1, NULLIF($2::text, '')::date, $3, NULLIF($4::text, '')::date, NULLIF($5::text, '')::date,
			$6, $7, $8, NULLIF($9::text, '')
		)
		RETURNING id`,
		m.Name, m.DOB, m.Gender, m.HireDate, m.FireDate, m.Status, permissions, worked, m.ConsultationRoom,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("create medical staff: %w", err)
	}
	return nil
}

func (r *medicalRepoPG) Update(ctx context.Context, m *MedicalStaff) error {
	permissions, worked, err := encodeMedical(m)
	if err != nil {
		return err
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE medical_staff SET
			name = $2, dob = NULLIF($3::text, '')::date, gender = $4,
			hire_date = NULLIF($5::text, '')::date, fire_date = NULLIF($6::text, '')::date,
			status = $7, permissions = $8, work_patterns = $9, consultation_room = NULLIF($10::text, ''),
			updated_at = NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.DOB, m.Gender, m.HireDate, m.FireDate, m.Status, permissions, worked, m.ConsultationRoom)
	if err != nil {
		return fmt.Errorf("update medical staff %d: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("medical staff %d", m.ID)
	}
	return nil
}

func (r *medicalRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM medical_staff WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete medical staff %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("medical staff %d", id)
	}
	return nil
}

func encodeMedical(m *MedicalStaff) (permissions, worked []byte, err error) {
	if permissions, err = json.Marshal(m.Permissions); err != nil {
		return nil, nil, fmt.Errorf("encode permissions: %w", err)
	}
	if worked, err = json.Marshal(m.WorkPatterns); err != nil {
		return nil, nil, fmt.Errorf("encode work patterns: %w", err)
	}
	return permissions, worked, nil
}

// =========== Staff ===========

type staffRepoPG struct{ pool db.DB }

func NewStaffRepo(pool db.DB) StaffRepository { return &staffRepoPG{pool: pool} }

func (r *staffRepoPG) List(ctx context.Context) ([]*Staff, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, `+profileCols+`, COALESCE(rank, ''), COALESCE(department, '')
		FROM staff ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query staff: %w", err)
	}
	defer rows.Close()

	out := []*Staff{}
	for rows.Next() {
		var (
			s           Staff
			permissions []byte
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.DOB, &s.Gender, &s.HireDate, &s.FireDate, &s.Status,
			&permissions, &s.Rank, &s.Department); err != nil {
			return nil, fmt.Errorf("scan staff: %w", err)
		}
		if err := decodeProfile(&s.Profile, permissions); err != nil {
			return nil, fmt.Errorf("decode permissions of staff %d: %w", s.ID, err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *staffRepoPG) Create(ctx context.Context, s *Staff) error {
	permissions, err := json.Marshal(s.Permissions)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO staff (
			name, dob, gender, hire_date, fire_date, status, permissions, rank, department
		) VALUES (
			$1, NULLIF($2::text, '')::date, $3, NULLIF($4::text, '')::date, NULLIF($5::text, '')::date,
			$6, $7, NULLIF($8::text, ''), NULLIF($9::text, '')
		)
		RETURNING id`,
		s.Name, s.DOB, s.Gender, s.HireDate, s.FireDate, s.Status, permissions, s.Rank, s.Department,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

func (r *staffRepoPG) Update(ctx context.Context, s *Staff) error {
	permissions, err := json.Marshal(s.Permissions)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE staff SET
			name = $2, dob = NULLIF($3::text, '')::date, gender = $4,
			hire_date = NULLIF($5::text, '')::date, fire_date = NULLIF($6::text, '')::date,
			status = $7, permissions = $8, rank = NULLIF($9::text, ''), department = NULLIF($10::text, ''),
			updated_at = NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.DOB, s.Gender, s.HireDate, s.FireDate, s.Status, permissions, s.Rank, s.Department)
	if err != nil {
		return fmt.Errorf("update staff %d: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("staff %d", s.ID)
	}
	return nil
}

func (r *staffRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM staff WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete staff %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("staff %d", id)
	}
	return nil
}
