package memory

import (
	"context"
	"sync"

	"github.com/mkaroly/webshop-checkout/internal/domain/catalog"
)

// ProductRepository is an in-memory inventory store. InTx serialises on the
// store mutex and stages writes so a failed fn leaves stock untouched.
type ProductRepository struct {
	mu         sync.RWMutex
	items      map[int64]*catalog.Product
	categories []catalog.Category
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		items: make(map[int64]*catalog.Product),
	}
}

func (r *ProductRepository) Get(ctx context.Context, productID int64) (*catalog.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[productID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return item.Clone(), nil
}

func (r *ProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	_ = ctx
	if product == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[product.ID] = product.Clone()
	return nil
}

func (r *ProductRepository) InTx(ctx context.Context, fn func(tx catalog.Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := &txView{base: r.items, staged: make(map[int64]*catalog.Product)}
	if err := fn(view); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, p := range view.staged {
		r.items[id] = p
	}
	return nil
}

func (r *ProductRepository) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]catalog.Category(nil), r.categories...), nil
}

func (r *ProductRepository) SaveCategory(ctx context.Context, c catalog.Category) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	r.categories = append(r.categories, c)
	return nil
}

// txView overlays staged writes on the committed map. The owning repository
// holds its mutex for the view's whole lifetime.
type txView struct {
	base   map[int64]*catalog.Product
	staged map[int64]*catalog.Product
}

func (v *txView) Get(ctx context.Context, productID int64) (*catalog.Product, error) {
	_ = ctx

	if p, ok := v.staged[productID]; ok {
		return p.Clone(), nil
	}
	if p, ok := v.base[productID]; ok {
		return p.Clone(), nil
	}
	return nil, catalog.ErrNotFound
}

func (v *txView) Save(ctx context.Context, product *catalog.Product) error {
	_ = ctx
	if product == nil {
		return nil
	}
	v.staged[product.ID] = product.Clone()
	return nil
}

// InTx on an open view joins the surrounding transaction.
func (v *txView) InTx(ctx context.Context, fn func(tx catalog.Repository) error) error {
	_ = ctx
	return fn(v)
}
