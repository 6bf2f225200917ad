package order

import "context"

// Repository persists confirmed orders together with their invoice and
// shipping address. Create must reject a second order carrying an already
// used payment id with ErrDuplicatePayment; that store-level uniqueness is
// the authoritative guard against duplicate order creation.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByPaymentID(ctx context.Context, paymentID string) (*Order, error)
	ExistsByPaymentID(ctx context.Context, paymentID string) (bool, error)
}
