package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/mkaroly/webshop-checkout/internal/domain/order"
)

// OrderRepository is an in-memory order store. The byPayment index plays
// the role of the database unique constraint on payment id.
type OrderRepository struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	byPayment map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:    make(map[string]*domain.Order),
		byPayment: make(map[string]string),
	}
}

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	if o.PaymentID == "" {
		return domain.ErrPaymentIDMissing
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPayment[o.PaymentID]; exists {
		return domain.ErrDuplicatePayment
	}

	r.orders[o.ID] = o.Clone()
	r.byPayment[o.PaymentID] = o.ID
	return nil
}

func (r *OrderRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	orderID, ok := r.byPayment[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) ExistsByPaymentID(ctx context.Context, paymentID string) (bool, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byPayment[paymentID]
	return ok, nil
}
