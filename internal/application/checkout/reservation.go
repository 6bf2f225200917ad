package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mkaroly/webshop-checkout/internal/domain/catalog"
	"github.com/mkaroly/webshop-checkout/internal/domain/checkout"
	"github.com/mkaroly/webshop-checkout/internal/pkg/logging"
	"go.uber.org/zap"
)

var ErrEmptyCart = errors.New("checkout: cart must contain at least one item")

// ItemFailure describes one cart item that could not be satisfied.
type ItemFailure struct {
	ProductID int64
	Requested int
	Available int
	Reason    error
}

func (f ItemFailure) String() string {
	if errors.Is(f.Reason, catalog.ErrNotFound) {
		return fmt.Sprintf("product %d: not found", f.ProductID)
	}
	return fmt.Sprintf("product %d: requested %d, available %d", f.ProductID, f.Requested, f.Available)
}

// ReservationError carries every unsatisfiable item of a cart in one batch.
type ReservationError struct {
	Failures []ItemFailure
}

func (e *ReservationError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.String())
	}
	return "checkout: reservation failed: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the per-item reasons so errors.Is matches the catalog
// sentinels.
func (e *ReservationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Reason)
	}
	return errs
}

// ReservationManager validates and atomically locks stock for a cart. It
// never talks to the payment gateway.
type ReservationManager struct {
	inventory catalog.Repository
	log       *zap.Logger
}

func NewReservationManager(inventory catalog.Repository, log *zap.Logger) *ReservationManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationManager{
		inventory: inventory,
		log:       log.With(zap.String("component", "reservation_manager")),
	}
}

// Reserve evaluates every cart item before deciding anything: items that
// cannot be satisfied are collected, not short-circuited, so the caller
// sees the whole batch. If any item fails, no stock changes at all. On
// success every decrement happens inside one store transaction and the
// returned reservations carry the product snapshots for later
// compensation.
func (m *ReservationManager) Reserve(ctx context.Context, items []checkout.CartItem) ([]checkout.Reservation, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	logger := logging.FromContext(ctx).With(zap.String("component", "reservation_manager"))

	var reservations []checkout.Reservation
	err := m.inventory.InTx(ctx, func(tx catalog.Repository) error {
		var failures []ItemFailure
		staged := make([]checkout.Reservation, 0, len(items))

		for _, item := range items {
			product, err := tx.Get(ctx, item.ProductID)
			if errors.Is(err, catalog.ErrNotFound) {
				failures = append(failures, ItemFailure{
					ProductID: item.ProductID,
					Requested: item.Quantity,
					Reason:    catalog.ErrNotFound,
				})
				continue
			}
			if err != nil {
				return fmt.Errorf("load product %d: %w", item.ProductID, err)
			}

			available := product.Stock
			if err := product.Deduct(item.Quantity); err != nil {
				failures = append(failures, ItemFailure{
					ProductID: item.ProductID,
					Requested: item.Quantity,
					Available: available,
					Reason:    err,
				})
				continue
			}

			staged = append(staged, checkout.Reservation{Product: product, Quantity: item.Quantity})
		}

		if len(failures) > 0 {
			return &ReservationError{Failures: failures}
		}

		for _, res := range staged {
			if err := tx.Save(ctx, res.Product); err != nil {
				return fmt.Errorf("persist stock for product %d: %w", res.Product.ID, err)
			}
		}

		reservations = staged
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("stock_reserved", zap.Int("items", len(reservations)))
	return reservations, nil
}

// Release restores every reserved product's stock to its pre-reservation
// value inside one transaction. It is the compensation half of Reserve.
func (m *ReservationManager) Release(ctx context.Context, reservations []checkout.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}

	return m.inventory.InTx(ctx, func(tx catalog.Repository) error {
		for _, res := range reservations {
			product, err := tx.Get(ctx, res.Product.ID)
			if err != nil {
				return fmt.Errorf("load product %d: %w", res.Product.ID, err)
			}
			if err := product.Restock(res.Quantity); err != nil {
				return fmt.Errorf("restock product %d: %w", res.Product.ID, err)
			}
			if err := tx.Save(ctx, product); err != nil {
				return fmt.Errorf("persist stock for product %d: %w", res.Product.ID, err)
			}
		}
		return nil
	})
}
