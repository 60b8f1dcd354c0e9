package acting

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

type repoPG struct {
	pool db.DB
}

func NewRepo(pool db.DB) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) List(ctx context.Context, doctor string) ([]*Acting, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT a.id, a.doctor, a.patient_id, COALESCE(p.name, ''), a.acting_type, a.duration,
			COALESCE(a.source, ''), COALESCE(a.memo, ''), a.position
		FROM acting_queue_items a
		LEFT JOIN patients p ON p.id = a.patient_id
		WHERE a.doctor = $1
		ORDER BY a.position, a.created_at`, doctor)
	if err != nil {
		return nil, fmt.Errorf("query acting queue of %s: %w", doctor, err)
	}
	defer rows.Close()

	out := []*Acting{}
	for rows.Next() {
		var a Acting
		if err := rows.Scan(&a.ID, &a.Doctor, &a.PatientID, &a.PatientName, &a.Type, &a.Duration,
			&a.Source, &a.Memo, &a.Position); err != nil {
			return nil, fmt.Errorf("scan acting: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Add takes a per-doctor advisory lock so two terminals appending at once
// get distinct positions.
func (r *repoPG) Add(ctx context.Context, a *Acting) error {
	a.ID = uuid.New()
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, a.Doctor); err != nil {
			return fmt.Errorf("lock acting queue of %s: %w", a.Doctor, err)
		}
		err := q.QueryRow(ctx, `
			INSERT INTO acting_queue_items (id, doctor, patient_id, acting_type, duration, source, memo, position)
			SELECT $1, $2, $3, $4, $5, NULLIF($6::text, ''), NULLIF($7::text, ''), COALESCE(MAX(position) + 1, 0)
			FROM acting_queue_items WHERE doctor = $2
			RETURNING position`,
			a.ID, a.Doctor, a.PatientID, a.Type, a.Duration, a.Source, a.Memo,
		).Scan(&a.Position)
		if err != nil {
			return fmt.Errorf("add acting for patient %d: %w", a.PatientID, err)
		}
		return nil
	})
}

func (r *repoPG) Update(ctx context.Context, a *Acting) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE acting_queue_items
		SET acting_type = $2, duration = $3, memo = NULLIF($4::text, '')
		WHERE id = $1
		RETURNING doctor, patient_id, COALESCE(source, ''), position`,
		a.ID, a.Type, a.Duration, a.Memo,
	).Scan(&a.Doctor, &a.PatientID, &a.Source, &a.Position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFoundf("id %s", a.ID)
		}
		return fmt.Errorf("update acting %s: %w", a.ID, err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM acting_queue_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete acting %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("id %s", id)
	}
	return nil
}

func (r *repoPG) Reorder(ctx context.Context, doctor string, ids []uuid.UUID) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)
		for i, id := range ids {
			tag, err := q.Exec(ctx,
				`UPDATE acting_queue_items SET position = $3 WHERE id = $1 AND doctor = $2`, id, doctor, i)
			if err != nil {
				return fmt.Errorf("reorder acting %s: %w", id, err)
			}
			if tag.RowsAffected() == 0 {
				return notFoundf("id %s in the queue of %s", id, doctor)
			}
		}
		return nil
	})
}
