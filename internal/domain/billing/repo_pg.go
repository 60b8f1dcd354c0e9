package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

type repoPG struct {
	pool db.DB
}

func NewRepo(pool db.DB) Repository {
	return &repoPG{pool: pool}
}

const paymentCols = `pay.id, pay.patient_id, COALESCE(p.name, ''), COALESCE(p.chart_number, ''),
	pay.total_amount, pay.paid_amount, pay.remaining_amount,
	pay.payment_methods, pay.treatment_items, pay.is_completed, pay.payment_date`

const paymentFrom = ` FROM payments pay LEFT JOIN patients p ON p.id = pay.patient_id `

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		pay            Payment
		methods, items []byte
	)
	if err := row.Scan(&pay.ID, &pay.PatientID, &pay.PatientName, &pay.ChartNumber,
		&pay.TotalAmount, &pay.PaidAmount, &pay.RemainingAmount,
		&methods, &items, &pay.Completed, &pay.PaymentDate); err != nil {
		return nil, err
	}
	pay.Methods = []MethodShare{}
	pay.TreatmentItems = []string{}
	if len(methods) > 0 {
		if err := json.Unmarshal(methods, &pay.Methods); err != nil {
			return nil, fmt.Errorf("decode payment methods of payment %d: %w", pay.ID, err)
		}
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &pay.TreatmentItems); err != nil {
			return nil, fmt.Errorf("decode treatment items of payment %d: %w", pay.ID, err)
		}
	}
	return &pay, nil
}

func (r *repoPG) PatientExists(ctx context.Context, patientID int64) (bool, error) {
	var ok bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND deletion_date IS NULL)`, patientID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check patient %d: %w", patientID, err)
	}
	return ok, nil
}

func (r *repoPG) CreatePending(ctx context.Context, p *Payment) error {
	items, err := json.Marshal(p.TreatmentItems)
	if err != nil {
		return fmt.Errorf("encode treatment items: %w", err)
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO payments (
			patient_id, total_amount, paid_amount, remaining_amount,
			payment_methods, treatment_items, is_completed
		) VALUES ($1, 0, 0, 0, '[]', $2, FALSE)
		RETURNING id, payment_date`,
		p.PatientID, items,
	).Scan(&p.ID, &p.PaymentDate)
	if err != nil {
		return fmt.Errorf("create payment for patient %d: %w", p.PatientID, err)
	}
	return nil
}

func (r *repoPG) list(ctx context.Context, tail string, args ...interface{}) ([]*Payment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+paymentCols+paymentFrom+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()
	out := []*Payment{}
	for rows.Next() {
		pay, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, pay)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

func (r *repoPG) ListPending(ctx context.Context) ([]*Payment, error) {
	return r.list(ctx, `WHERE NOT pay.is_completed ORDER BY pay.payment_date ASC, pay.id`)
}

func (r *repoPG) ListCompleted(ctx context.Context, limit int) ([]*Payment, error) {
	return r.list(ctx, `WHERE pay.is_completed ORDER BY pay.payment_date DESC, pay.id DESC LIMIT $1`, limit)
}

func (r *repoPG) Complete(ctx context.Context, id int64, s Settlement) (*Payment, error) {
	methods, err := json.Marshal(s.Methods)
	if err != nil {
		return nil, fmt.Errorf("encode payment methods: %w", err)
	}
	var items []byte
	if s.TreatmentItems != nil {
		if items, err = json.Marshal(s.TreatmentItems); err != nil {
			return nil, fmt.Errorf("encode treatment items: %w", err)
		}
	}
	paid := s.Paid()
	var out *Payment
	err = db.InTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)
		tag, err := q.Exec(ctx, `
			UPDATE payments SET
				total_amount = $2, paid_amount = $3, remaining_amount = $4,
				payment_methods = $5, treatment_items = COALESCE($6, treatment_items),
				is_completed = TRUE, payment_date = NOW()
			WHERE id = $1 AND NOT is_completed`,
			id, s.TotalAmount, paid, s.TotalAmount-paid, methods, items,
		)
		if err != nil {
			return fmt.Errorf("complete payment %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return notFoundf("pending payment %d", id)
		}
		out, err = scanPayment(q.QueryRow(ctx, `SELECT `+paymentCols+paymentFrom+`WHERE pay.id = $1`, id))
		if err != nil {
			return fmt.Errorf("read payment %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
