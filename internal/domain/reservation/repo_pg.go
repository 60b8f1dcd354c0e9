package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

// slotConstraint is the partial unique index that keeps one live
// reservation per doctor and time.
const slotConstraint = "uq_reservations_slot"

type repoPG struct {
	pool db.DB
}

func NewRepo(pool db.DB) Repository {
	return &repoPG{pool: pool}
}

const reservationSelect = `
	SELECT r.id, r.patient_id, COALESCE(p.name, ''), r.doctor,
		to_char(r.reservation_date, 'YYYY-MM-DD'), to_char(r.reservation_time, 'HH24:MI'),
		r.status, COALESCE(r.memo, ''), r.created_at, t.treatment_name, t.acting
	FROM reservations r
	LEFT JOIN patients p ON p.id = r.patient_id
	LEFT JOIN reservation_treatments t ON t.reservation_id = r.id`

// collect folds the one-row-per-treatment join back into reservations.
func collect(rows pgx.Rows) ([]*Reservation, error) {
	defer rows.Close()
	out := []*Reservation{}
	var cur *Reservation
	for rows.Next() {
		var (
			r      Reservation
			name   *string
			acting *int
		)
		if err := rows.Scan(&r.ID, &r.PatientID, &r.PatientName, &r.Doctor, &r.Date, &r.Time,
			&r.Status, &r.Memo, &r.CreatedAt, &name, &acting); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		if cur == nil || cur.ID != r.ID {
			r.Treatments = []Treatment{}
			cur = &r
			out = append(out, cur)
		}
		if name != nil {
			t := Treatment{Name: *name}
			if acting != nil {
				t.Acting = *acting
			}
			cur.Treatments = append(cur.Treatments, t)
		}
	}
	return out, rows.Err()
}

func (r *repoPG) List(ctx context.Context, from, to string) ([]*Reservation, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, reservationSelect+`
		WHERE r.reservation_date BETWEEN $1::date AND $2::date
		ORDER BY r.reservation_date, r.reservation_time, r.id, t.id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query reservations %s..%s: %w", from, to, err)
	}
	return collect(rows)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, reservationSelect+`
		WHERE r.id = $1
		ORDER BY t.id`, id)
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", id, err)
	}
	list, err := collect(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, notFoundf("id %s", id)
	}
	return list[0], nil
}

func (r *repoPG) Create(ctx context.Context, res *Reservation) error {
	res.ID = uuid.New()
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		err := db.Conn(ctx, r.pool).QueryRow(ctx, `
			INSERT INTO reservations (id, patient_id, doctor, reservation_date, reservation_time, status, memo)
			VALUES ($1, $2, $3, $4::date, $5::time, $6, NULLIF($7::text, ''))
			RETURNING created_at`,
			res.ID, res.PatientID, res.Doctor, res.Date, res.Time, res.Status, res.Memo,
		).Scan(&res.CreatedAt)
		if err != nil {
			return slotError(err, res, "create reservation")
		}
		return r.insertTreatments(ctx, res.ID, res.Treatments)
	})
}

func (r *repoPG) Update(ctx context.Context, res *Reservation) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE reservations SET
			doctor = $2, reservation_date = $3::date, reservation_time = $4::time,
			memo = NULLIF($5::text, ''), updated_at = NOW()
		WHERE id = $1`,
		res.ID, res.Doctor, res.Date, res.Time, res.Memo)
	if err != nil {
		return slotError(err, res, fmt.Sprintf("update reservation %s", res.ID))
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("id %s", res.ID)
	}
	return nil
}

// UpdateStatus can also collide with the slot index: reviving a cancelled
// reservation whose time was rebooked.
func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE reservations SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		if isSlotConflict(err) {
			return fmt.Errorf("%w: reservation %s", ErrConflict, id)
		}
		return fmt.Errorf("update status of reservation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("id %s", id)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		if err := r.DeleteTreatments(ctx, id); err != nil {
			return err
		}
		tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete reservation %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return notFoundf("id %s", id)
		}
		return nil
	})
}

func (r *repoPG) Treatments(ctx context.Context, id uuid.UUID) ([]Treatment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT treatment_name, acting FROM reservation_treatments
		WHERE reservation_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query treatments of reservation %s: %w", id, err)
	}
	defer rows.Close()

	out := []Treatment{}
	for rows.Next() {
		var t Treatment
		if err := rows.Scan(&t.Name, &t.Acting); err != nil {
			return nil, fmt.Errorf("scan reservation treatment: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repoPG) AddTreatments(ctx context.Context, id uuid.UUID, list []Treatment) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		return r.insertTreatments(ctx, id, list)
	})
}

func (r *repoPG) DeleteTreatments(ctx context.Context, id uuid.UUID) error {
	if _, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM reservation_treatments WHERE reservation_id = $1`, id); err != nil {
		return fmt.Errorf("delete treatments of reservation %s: %w", id, err)
	}
	return nil
}

func (r *repoPG) insertTreatments(ctx context.Context, id uuid.UUID, list []Treatment) error {
	q := db.Conn(ctx, r.pool)
	for _, t := range list {
		if _, err := q.Exec(ctx,
			`INSERT INTO reservation_treatments (reservation_id, treatment_name, acting) VALUES ($1, $2, $3)`,
			id, t.Name, t.Acting); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return notFoundf("id %s", id)
			}
			return fmt.Errorf("add treatment %q to reservation %s: %w", t.Name, id, err)
		}
	}
	return nil
}

func isSlotConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == slotConstraint
}

func slotError(err error, res *Reservation, what string) error {
	if isSlotConflict(err) {
		return fmt.Errorf("%w: %s at %s %s", ErrConflict, res.Doctor, res.Date, res.Time)
	}
	return fmt.Errorf("%s: %w", what, err)
}
