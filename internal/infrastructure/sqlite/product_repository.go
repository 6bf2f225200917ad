package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mkaroly/webshop-checkout/internal/domain/catalog"
)

// ProductRepository implements catalog.Repository on the shared handle.
type ProductRepository struct {
	db *sql.DB
}

func (r *ProductRepository) Get(ctx context.Context, productID int64) (*catalog.Product, error) {
	return getProduct(ctx, r.db, productID)
}

func (r *ProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	return saveProduct(ctx, r.db, product)
}

// InTx runs fn inside one immediate transaction so concurrent reservations
// on overlapping products serialise at the store instead of losing updates.
func (r *ProductRepository) InTx(ctx context.Context, fn func(tx catalog.Repository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&txProductRepository{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (r *ProductRepository) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, parent_id FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []catalog.Category
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID); err != nil {
			return nil, fmt.Errorf("sqlite: scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *ProductRepository) SaveCategory(ctx context.Context, c catalog.Category) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, parent_id) VALUES (?, ?)`,
		c.Name, c.ParentID,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: save category: %w", err)
	}
	return res.LastInsertId()
}

// txProductRepository is the transactional view handed to InTx callbacks.
type txProductRepository struct {
	tx *sql.Tx
}

func (r *txProductRepository) Get(ctx context.Context, productID int64) (*catalog.Product, error) {
	return getProduct(ctx, r.tx, productID)
}

func (r *txProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	return saveProduct(ctx, r.tx, product)
}

// InTx on an open transaction joins it.
func (r *txProductRepository) InTx(ctx context.Context, fn func(tx catalog.Repository) error) error {
	_ = ctx
	return fn(r)
}

func getProduct(ctx context.Context, q querier, productID int64) (*catalog.Product, error) {
	var (
		p         catalog.Product
		updatedAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, name, description, serial_number, price, stock, image_url, updated_at
		 FROM products WHERE id = ?`, productID,
	).Scan(&p.ID, &p.Name, &p.Description, &p.SerialNumber, &p.Price, &p.Stock, &p.ImageURL, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get product %d: %w", productID, err)
	}

	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		p.UpdatedAt = t
	}
	return &p, nil
}

func saveProduct(ctx context.Context, q querier, p *catalog.Product) error {
	if p == nil {
		return nil
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO products (id, name, description, serial_number, price, stock, image_url, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   serial_number = excluded.serial_number,
		   price = excluded.price,
		   stock = excluded.stock,
		   image_url = excluded.image_url,
		   updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Description, p.SerialNumber, p.Price, p.Stock, p.ImageURL,
		updatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save product %d: %w", p.ID, err)
	}
	return nil
}
