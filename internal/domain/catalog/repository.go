package catalog

import "context"

// Repository is the inventory store consumed by the checkout workflow.
// InTx runs fn against a transactional view: either every Save made inside
// fn becomes visible atomically, or none of them do.
type Repository interface {
	Get(ctx context.Context, productID int64) (*Product, error)
	Save(ctx context.Context, product *Product) error
	InTx(ctx context.Context, fn func(tx Repository) error) error
}

// CategoryRepository exposes the category hierarchy for tree lookups.
type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]Category, error)
}
