package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

type repoPG struct {
	pool db.DB
}

func NewRepo(pool db.DB) Repository {
	return &repoPG{pool: pool}
}

const patientCols = `id, name, COALESCE(chart_number, ''), COALESCE(to_char(dob, 'YYYY-MM-DD'), ''),
	COALESCE(gender, ''), COALESCE(phone, ''), COALESCE(address, ''), COALESCE(referral_path, ''),
	to_char(registration_date, 'YYYY-MM-DD'),
	deletion_date IS NOT NULL, COALESCE(deletion_date, to_timestamp(0)),
	created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var (
		p       Patient
		deleted bool
		at      time.Time
	)
	err := row.Scan(&p.ID, &p.Name, &p.ChartNumber, &p.DOB,
		&p.Gender, &p.Phone, &p.Address, &p.ReferralPath,
		&p.RegistrationDate, &deleted, &at, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if deleted {
		at = at.UTC()
		p.DeletionDate = &at
	}
	return &p, nil
}

func (r *repoPG) list(ctx context.Context, where string) ([]*Patient, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+patientCols+` FROM patients `+where)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()
	out := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patients: %w", err)
	}
	return out, nil
}

func (r *repoPG) List(ctx context.Context) ([]*Patient, error) {
	return r.list(ctx, `WHERE deletion_date IS NULL ORDER BY created_at DESC`)
}

func (r *repoPG) ListDeleted(ctx context.Context) ([]*Patient, error) {
	return r.list(ctx, `WHERE deletion_date IS NOT NULL ORDER BY deletion_date DESC`)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("id %d", id)
		}
		return nil, fmt.Errorf("get patient %d: %w", id, err)
	}
	return p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (
			name, chart_number, dob, gender, phone, address, referral_path, registration_date
		) VALUES (
			$1, $2, NULLIF($3::text, '')::date, $4, $5, $6, $7,
			COALESCE(NULLIF($8::text, '')::date, CURRENT_DATE)
		)
		RETURNING id, to_char(registration_date, 'YYYY-MM-DD'), created_at`,
		p.Name, p.ChartNumber, p.DOB, p.Gender, p.Phone, p.Address, p.ReferralPath, p.RegistrationDate,
	).Scan(&p.ID, &p.RegistrationDate, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE patients SET
			name = $2, chart_number = $3, dob = NULLIF($4::text, '')::date,
			gender = $5, phone = $6, address = $7, referral_path = $8,
			updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.ChartNumber, p.DOB, p.Gender, p.Phone, p.Address, p.ReferralPath,
	)
	if err != nil {
		return fmt.Errorf("update patient %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("id %d", p.ID)
	}
	return nil
}

func (r *repoPG) SetDeletionDate(ctx context.Context, id int64, at *time.Time) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE patients SET deletion_date = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("set deletion date of patient %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("id %d", id)
	}
	return nil
}

func (r *repoPG) DefaultTreatments(ctx context.Context, patientID int64) ([]DefaultTreatment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT treatment_name, duration, COALESCE(memo, '')
		FROM patient_default_treatments
		WHERE patient_id = $1
		ORDER BY position, id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query default treatments of patient %d: %w", patientID, err)
	}
	defer rows.Close()
	out := []DefaultTreatment{}
	for rows.Next() {
		var t DefaultTreatment
		if err := rows.Scan(&t.Name, &t.Duration, &t.Memo); err != nil {
			return nil, fmt.Errorf("scan default treatment: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate default treatments: %w", err)
	}
	return out, nil
}

func (r *repoPG) SaveDefaultTreatments(ctx context.Context, patientID int64, list []DefaultTreatment) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)
		if _, err := q.Exec(ctx,
			`DELETE FROM patient_default_treatments WHERE patient_id = $1`, patientID); err != nil {
			return fmt.Errorf("clear default treatments of patient %d: %w", patientID, err)
		}
		for pos, t := range list {
			if _, err := q.Exec(ctx, `
				INSERT INTO patient_default_treatments (patient_id, treatment_name, duration, memo, position)
				VALUES ($1, $2, $3, $4, $5)`,
				patientID, t.Name, t.Duration, t.Memo, pos,
			); err != nil {
				return fmt.Errorf("insert default treatment %q: %w", t.Name, err)
			}
		}
		return nil
	})
}
