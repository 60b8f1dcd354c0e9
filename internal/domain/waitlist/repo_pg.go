package waitlist

import (
	"context"
	"fmt"

	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

type repoPG struct {
	pool db.DB
}

func NewRepo(pool db.DB) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) List(ctx context.Context) ([]Entry, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT w.patient_id, p.name, COALESCE(p.chart_number, ''), w.added_at
		FROM waiting_list w
		JOIN patients p ON p.id = w.patient_id
		ORDER BY w.added_at, w.patient_id`)
	if err != nil {
		return nil, fmt.Errorf("query waiting list: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.PatientID, &e.PatientName, &e.ChartNumber, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("scan waiting list: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Add inserts only active patients. When nothing was inserted the patient is
// either already waiting or unknown, and a second lookup tells which.
func (r *repoPG) Add(ctx context.Context, patientID int64) (bool, error) {
	var added bool
	err := db.InTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)
		tag, err := q.Exec(ctx, `
			INSERT INTO waiting_list (patient_id)
			SELECT id FROM patients WHERE id = $1 AND deletion_date IS NULL
			ON CONFLICT (patient_id) DO NOTHING`, patientID)
		if err != nil {
			return fmt.Errorf("add patient %d to waiting list: %w", patientID, err)
		}
		if tag.RowsAffected() > 0 {
			added = true
			return nil
		}
		var waiting bool
		if err := q.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM waiting_list WHERE patient_id = $1)`, patientID,
		).Scan(&waiting); err != nil {
			return fmt.Errorf("check waiting list for patient %d: %w", patientID, err)
		}
		if !waiting {
			return notFoundf("patient %d", patientID)
		}
		return nil
	})
	return added, err
}

func (r *repoPG) Remove(ctx context.Context, patientID int64) (bool, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM waiting_list WHERE patient_id = $1`, patientID)
	if err != nil {
		return false, fmt.Errorf("remove patient %d from waiting list: %w", patientID, err)
	}
	return tag.RowsAffected() > 0, nil
}
