// Package sqlite provides the durable product and order stores on top of
// modernc.org/sqlite (pure Go, no CGO).
//
// WAL mode is enabled on Open so the HTTP path and the detached
// confirmation watchers can read and write concurrently. The unique index
// on orders.payment_id is the authoritative guard against two watchers
// committing the same payment.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Register the pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
    id            INTEGER PRIMARY KEY,
    name          TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    serial_number TEXT NOT NULL DEFAULT '',
    price         INTEGER NOT NULL,
    stock         INTEGER NOT NULL CHECK (stock >= 0),
    image_url     TEXT NOT NULL DEFAULT '',
    updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    name      TEXT NOT NULL UNIQUE,
    parent_id INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS orders (
    id         TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    order_date TEXT NOT NULL,
    payment_id TEXT NOT NULL,

    ship_name    TEXT NOT NULL DEFAULT '',
    ship_email   TEXT NOT NULL DEFAULT '',
    ship_phone   TEXT NOT NULL DEFAULT '',
    ship_zip     TEXT NOT NULL DEFAULT '',
    ship_country TEXT NOT NULL DEFAULT '',
    ship_city    TEXT NOT NULL DEFAULT '',
    ship_street  TEXT NOT NULL DEFAULT '',

    inv_name      TEXT NOT NULL DEFAULT '',
    inv_email     TEXT NOT NULL DEFAULT '',
    inv_phone     TEXT NOT NULL DEFAULT '',
    inv_zip       TEXT NOT NULL DEFAULT '',
    inv_country   TEXT NOT NULL DEFAULT '',
    inv_city      TEXT NOT NULL DEFAULT '',
    inv_street    TEXT NOT NULL DEFAULT '',
    inv_created   TEXT NOT NULL DEFAULT '',
    inv_method    TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_payment_id ON orders (payment_id);

CREATE TABLE IF NOT EXISTS order_items (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id      TEXT NOT NULL REFERENCES orders (id),
    product_id    INTEGER NOT NULL,
    amount        INTEGER NOT NULL,
    ordered_price INTEGER NOT NULL
);
`

// Store owns the database handle; repositories share it.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Products() *ProductRepository { return &ProductRepository{db: s.db} }

func (s *Store) Orders() *OrderRepository { return &OrderRepository{db: s.db} }

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// isUniqueViolation detects the UNIQUE constraint failure of the sqlite
// driver; the driver does not export a typed error for it.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
