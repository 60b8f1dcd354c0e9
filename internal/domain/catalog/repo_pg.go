package catalog

import (
	"context"
	"encoding/json"
	"errors"
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

func (r *repoPG) List(ctx context.Context) ([]Item, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, name, default_duration, COALESCE(display_order, 0)
		FROM treatment_items
		ORDER BY display_order, id`)
	if err != nil {
		return nil, fmt.Errorf("query treatment items: %w", err)
	}
	defer rows.Close()
	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.DefaultDuration, &it.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan treatment item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate treatment items: %w", err)
	}
	return out, nil
}

func (r *repoPG) Create(ctx context.Context, it *Item) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO treatment_items (name, default_duration, display_order)
		VALUES ($1, $2, $3)
		RETURNING id`,
		it.Name, it.DefaultDuration, it.DisplayOrder,
	).Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("create treatment item: %w", err)
	}
	return nil
}

func (r *repoPG) Update(ctx context.Context, it *Item) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE treatment_items
		SET name = $2, default_duration = $3, display_order = $4
		WHERE id = $1
		RETURNING id`,
		it.ID, it.Name, it.DefaultDuration, it.DisplayOrder,
	).Scan(&it.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFoundf("id %d", it.ID)
		}
		return fmt.Errorf("update treatment item %d: %w", it.ID, err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM treatment_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete treatment item %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("id %d", id)
	}
	return nil
}

// Reorder applies all positions in one transaction. An unknown id aborts
// the whole batch.
func (r *repoPG) Reorder(ctx context.Context, orders []Order) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)
		for _, o := range orders {
			tag, err := q.Exec(ctx,
				`UPDATE treatment_items SET display_order = $2 WHERE id = $1`, o.ID, o.DisplayOrder)
			if err != nil {
				return fmt.Errorf("reorder treatment item %d: %w", o.ID, err)
			}
			if tag.RowsAffected() == 0 {
				return notFoundf("id %d", o.ID)
			}
		}
		return nil
	})
}

func (r *repoPG) ListUncovered(ctx context.Context) ([]UncoveredCategory, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT category_name, items FROM uncovered_categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query uncovered categories: %w", err)
	}
	defer rows.Close()
	out := []UncoveredCategory{}
	for rows.Next() {
		var (
			c     UncoveredCategory
			items []byte
		)
		if err := rows.Scan(&c.Name, &items); err != nil {
			return nil, fmt.Errorf("scan uncovered category: %w", err)
		}
		c.Items = []string{}
		if len(items) > 0 {
			if err := json.Unmarshal(items, &c.Items); err != nil {
				return nil, fmt.Errorf("decode items of category %q: %w", c.Name, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repoPG) ReplaceUncovered(ctx context.Context, list []UncoveredCategory) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)
		if _, err := q.Exec(ctx, `DELETE FROM uncovered_categories`); err != nil {
			return fmt.Errorf("clear uncovered categories: %w", err)
		}
		for _, c := range list {
			items, err := json.Marshal(c.Items)
			if err != nil {
				return fmt.Errorf("encode items of category %q: %w", c.Name, err)
			}
			if _, err := q.Exec(ctx,
				`INSERT INTO uncovered_categories (category_name, items) VALUES ($1, $2)`, c.Name, items); err != nil {
				return fmt.Errorf("insert uncovered category %q: %w", c.Name, err)
			}
		}
		return nil
	})
}
