package catalog

import "context"

type Repository interface {
	// List returns items by display order, then id.
	List(ctx context.Context) ([]Item, error)
	Create(ctx context.Context, it *Item) error
	Update(ctx context.Context, it *Item) error
	Delete(ctx context.Context, id int64) error
	Reorder(ctx context.Context, orders []Order) error

	// ListUncovered returns categories in the order they were saved.
	ListUncovered(ctx context.Context) ([]UncoveredCategory, error)
	// ReplaceUncovered swaps the whole category set in one transaction.
	ReplaceUncovered(ctx context.Context, list []UncoveredCategory) error
}
