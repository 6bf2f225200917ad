package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/mkaroly/webshop-checkout/internal/domain/order"
)

// OrderRepository implements order.Repository. The unique index on
// payment_id turns a duplicate commit into ErrDuplicatePayment instead of
// a second order.
type OrderRepository struct {
	db *sql.DB
}

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("sqlite: order id is required")
	}
	if o.PaymentID == "" {
		return domain.ErrPaymentIDMissing
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (
		   id, status, order_date, payment_id,
		   ship_name, ship_email, ship_phone, ship_zip, ship_country, ship_city, ship_street,
		   inv_name, inv_email, inv_phone, inv_zip, inv_country, inv_city, inv_street, inv_created, inv_method
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, string(o.Status), o.OrderDate.Format(time.RFC3339Nano), o.PaymentID,
		o.ShippingAddress.Name, o.ShippingAddress.Email, o.ShippingAddress.PhoneNumber,
		o.ShippingAddress.ZipCode, o.ShippingAddress.Country, o.ShippingAddress.City, o.ShippingAddress.Street,
		o.Invoice.CustomerName, o.Invoice.CustomerEmail, o.Invoice.CustomerPhoneNumber,
		o.Invoice.CustomerZipCode, o.Invoice.CustomerCountry, o.Invoice.CustomerCity, o.Invoice.CustomerStreet,
		o.Invoice.CreationDate.Format(time.RFC3339Nano), o.Invoice.PaymentMethod,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicatePayment
	}
	if err != nil {
		return fmt.Errorf("sqlite: insert order: %w", err)
	}

	for _, it := range o.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, amount, ordered_price) VALUES (?, ?, ?, ?)`,
			o.ID, it.ProductID, it.Amount, it.OrderedPrice,
		); err != nil {
			return fmt.Errorf("sqlite: insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	var (
		o         domain.Order
		orderDate string
		invDate   string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, order_date, payment_id,
		        ship_name, ship_email, ship_phone, ship_zip, ship_country, ship_city, ship_street,
		        inv_name, inv_email, inv_phone, inv_zip, inv_country, inv_city, inv_street, inv_created, inv_method
		 FROM orders WHERE payment_id = ?`, paymentID,
	).Scan(
		&o.ID, &o.Status, &orderDate, &o.PaymentID,
		&o.ShippingAddress.Name, &o.ShippingAddress.Email, &o.ShippingAddress.PhoneNumber,
		&o.ShippingAddress.ZipCode, &o.ShippingAddress.Country, &o.ShippingAddress.City, &o.ShippingAddress.Street,
		&o.Invoice.CustomerName, &o.Invoice.CustomerEmail, &o.Invoice.CustomerPhoneNumber,
		&o.Invoice.CustomerZipCode, &o.Invoice.CustomerCountry, &o.Invoice.CustomerCity, &o.Invoice.CustomerStreet,
		&invDate, &o.Invoice.PaymentMethod,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get order by payment id: %w", err)
	}

	if t, perr := time.Parse(time.RFC3339Nano, orderDate); perr == nil {
		o.OrderDate = t
	}
	if t, perr := time.Parse(time.RFC3339Nano, invDate); perr == nil {
		o.Invoice.CreationDate = t
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, amount, ordered_price FROM order_items WHERE order_id = ? ORDER BY id`, o.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get order items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ProductID, &it.Amount, &it.OrderedPrice); err != nil {
			return nil, fmt.Errorf("sqlite: scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) ExistsByPaymentID(ctx context.Context, paymentID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM orders WHERE payment_id = ?`, paymentID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: exists by payment id: %w", err)
	}
	return true, nil
}
