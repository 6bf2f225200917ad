package checkout

import (
	"context"
	"errors"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/mkaroly/webshop-checkout/internal/domain/checkout"
	"github.com/mkaroly/webshop-checkout/internal/domain/order"
	"github.com/mkaroly/webshop-checkout/internal/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	outcomeCommitted = "committed"
	outcomeReleased  = "released"
	outcomeNoop      = "noop"

	paymentMethodBarion = "Barion"
)

// Watcher is the deferred, single-shot unit that resolves one payment id
// to either a committed order or a fully released reservation. Every
// dependency it needs (store handles, gateway client, logger) is captured
// here at scheduling time, because the originating request's scope no
// longer exists when it runs.
type Watcher struct {
	paymentID    string
	reservations []checkout.Reservation
	customer     checkout.CustomerInfo

	queryTimeout time.Duration

	manager *ReservationManager
	orders  order.Repository
	gateway checkout.Gateway
	ids     IDGenerator

	metrics *metrics.Checkout
	log     *zap.Logger

	// ran enforces the single confirmation attempt even if the same
	// instance is invoked twice.
	ran atomic.Bool
}

func (s *Service) newWatcher(paymentID string, reservations []checkout.Reservation, customer checkout.CustomerInfo) *Watcher {
	return &Watcher{
		paymentID:    paymentID,
		reservations: reservations,
		customer:     customer,
		queryTimeout: s.opts.GatewayTimeout,
		manager:      s.reservations,
		orders:       s.orders,
		gateway:      s.gateway,
		ids:          s.ids,
		metrics:      s.metrics,
		log: s.log.With(
			zap.String("component", "confirmation_watcher"),
			zap.String("payment_id", paymentID),
		),
	}
}

// Run executes the single confirmation attempt. The scheduler has already
// waited out the payment window by the time it fires, and there is no
// caller to report to: every error is logged and swallowed, the
// inventory/order state is the only externally visible outcome.
func (w *Watcher) Run(ctx context.Context) {
	if !w.ran.CompareAndSwap(false, true) {
		w.log.Warn("watcher_run_repeated")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("watcher_panic",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "Checkout.ConfirmPayment")
	span.SetAttributes(attribute.String("payment.id", w.paymentID))
	defer span.End()

	// Fast-path idempotency guard against duplicate scheduling. The store's
	// unique payment-id constraint remains the authoritative one.
	exists, err := w.orders.ExistsByPaymentID(ctx, w.paymentID)
	if err != nil {
		w.log.Error("watcher_order_lookup_failed", zap.Error(err))
		w.confirmation(outcomeError)
		return
	}
	if exists {
		w.log.Info("watcher_skipped_order_exists")
		w.confirmation(outcomeNoop)
		return
	}

	status := w.queryStatus(ctx)
	span.SetAttributes(attribute.String("payment.status", string(status)))

	if status != checkout.PaymentSucceeded {
		w.release(ctx)
		return
	}
	w.commit(ctx)
}

// queryStatus performs the single gateway check. Transport failures fold
// into not-succeeded: releasing stock for a payment whose status query
// merely errored is an accepted trade for bounded inventory lock time.
func (w *Watcher) queryStatus(ctx context.Context) checkout.PaymentStatus {
	queryCtx := ctx
	if w.queryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, w.queryTimeout)
		defer cancel()
	}

	status, err := w.gateway.PaymentState(queryCtx, w.paymentID)
	if err != nil {
		w.log.Warn("watcher_status_query_failed", zap.Error(err))
		return checkout.PaymentNotSucceeded
	}
	return status
}

func (w *Watcher) release(ctx context.Context) {
	if err := w.manager.Release(ctx, w.reservations); err != nil {
		w.log.Error("watcher_release_failed", zap.Error(err))
		w.confirmation(outcomeError)
		return
	}
	w.released(totalUnits(w.reservations))
	w.confirmation(outcomeReleased)
	w.log.Info("watcher_released", zap.Int("items", len(w.reservations)))
}

func (w *Watcher) commit(ctx context.Context) {
	items := make([]order.Item, 0, len(w.reservations))
	for _, res := range w.reservations {
		items = append(items, order.Item{
			ProductID:    res.Product.ID,
			Amount:       res.Quantity,
			OrderedPrice: res.Product.Price,
		})
	}

	o, err := order.New(w.ids.NewID(), w.paymentID, items,
		order.ShippingAddress{
			Name:        w.customer.Name,
			Email:       w.customer.EmailAddress,
			PhoneNumber: w.customer.PhoneNumber,
			ZipCode:     w.customer.ZipCode,
			Country:     w.customer.Country,
			City:        w.customer.City,
			Street:      w.customer.Street,
		},
		order.Invoice{
			CustomerName:        w.customer.Name,
			CustomerEmail:       w.customer.EmailAddress,
			CustomerPhoneNumber: w.customer.PhoneNumber,
			CustomerZipCode:     w.customer.ZipCode,
			CustomerCountry:     w.customer.Country,
			CustomerCity:        w.customer.City,
			CustomerStreet:      w.customer.Street,
			CreationDate:        time.Now().UTC(),
			PaymentMethod:       paymentMethodBarion,
		},
	)
	if err != nil {
		w.log.Error("watcher_order_build_failed", zap.Error(err))
		w.confirmation(outcomeError)
		return
	}

	if err := w.orders.Create(ctx, o); err != nil {
		if errors.Is(err, order.ErrDuplicatePayment) {
			// A concurrent run won the race past the existence check; the
			// store constraint held, nothing to undo.
			w.log.Info("watcher_skipped_duplicate_payment")
			w.confirmation(outcomeNoop)
			return
		}
		w.log.Error("watcher_order_create_failed", zap.Error(err))
		w.confirmation(outcomeError)
		return
	}

	w.confirmation(outcomeCommitted)
	w.log.Info("watcher_committed",
		zap.String("order_id", o.ID),
		zap.Int("items", len(o.Items)),
	)
}

func (w *Watcher) confirmation(outcome string) {
	if w.metrics != nil {
		w.metrics.Confirmations.WithLabelValues(outcome).Inc()
	}
}

func (w *Watcher) released(units int) {
	if w.metrics != nil {
		w.metrics.StockUnitsReleased.Add(float64(units))
	}
}
