package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkaroly/webshop-checkout/internal/domain/catalog"
	"github.com/mkaroly/webshop-checkout/internal/domain/checkout"
	"github.com/mkaroly/webshop-checkout/internal/domain/order"
	"github.com/mkaroly/webshop-checkout/internal/infrastructure/memory"
	"github.com/mkaroly/webshop-checkout/internal/pkg/metrics"
)

// initiate runs a full initiation and returns the scheduled watcher task.
func initiate(t *testing.T, f *fixture) func(ctx context.Context) {
	t.Helper()
	_, err := f.service.InitiatePayment(context.Background(), validInput())
	require.NoError(t, err)
	require.Len(t, f.scheduler.tasks, 1)
	return f.scheduler.tasks[0]
}

func TestWatcherCommitsOnSucceededPayment(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &catalog.Product{ID: 1, Name: "silver ring", Price: 100, Stock: 5})
	f.gateway.stateFn = func(context.Context, string) (checkout.PaymentStatus, error) {
		return checkout.PaymentSucceeded, nil
	}

	run := initiate(t, f)
	assert.Equal(t, 3, stockOf(t, f.products, 1))

	run(context.Background())

	o, err := f.orders.GetByPaymentID(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, o.Status)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(1), o.Items[0].ProductID)
	assert.Equal(t, 2, o.Items[0].Amount)
	// price snapshotted at initiation time
	assert.Equal(t, int64(100), o.Items[0].OrderedPrice)
	assert.Equal(t, "Kiss Anna", o.Invoice.CustomerName)
	assert.Equal(t, "Budapest", o.ShippingAddress.City)

	// stock stays decremented: the reservation was consumed, not released
	assert.Equal(t, 3, stockOf(t, f.products, 1))
}

func TestWatcherReleasesOnFailedPayment(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &catalog.Product{ID: 1, Price: 100, Stock: 5})
	f.gateway.stateFn = func(context.Context, string) (checkout.PaymentStatus, error) {
		return checkout.PaymentNotSucceeded, nil
	}

	run := initiate(t, f)
	run(context.Background())

	_, err := f.orders.GetByPaymentID(context.Background(), "P1")
	assert.ErrorIs(t, err, order.ErrNotFound)
	assert.Equal(t, 5, stockOf(t, f.products, 1))
}

func TestWatcherReleasesOnStatusQueryError(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &catalog.Product{ID: 1, Price: 100, Stock: 5})
	f.gateway.stateFn = func(context.Context, string) (checkout.PaymentStatus, error) {
		return checkout.PaymentNotSucceeded, errors.New("gateway timeout")
	}

	run := initiate(t, f)
	run(context.Background())

	// a transport failure folds into "not succeeded": stock is released
	_, err := f.orders.GetByPaymentID(context.Background(), "P1")
	assert.ErrorIs(t, err, order.ErrNotFound)
	assert.Equal(t, 5, stockOf(t, f.products, 1))
}

func TestWatcherSecondRunIsNoop(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &catalog.Product{ID: 1, Price: 100, Stock: 5})
	stateCalls := 0
	f.gateway.stateFn = func(context.Context, string) (checkout.PaymentStatus, error) {
		stateCalls++
		return checkout.PaymentSucceeded, nil
	}

	run := initiate(t, f)
	run(context.Background())

	// a duplicate scheduling for the same payment id stops at the
	// existence guard: no second order, no extra status query
	p, err := f.products.Get(context.Background(), 1)
	require.NoError(t, err)
	dup := f.service.newWatcher("P1", []checkout.Reservation{{Product: p, Quantity: 2}}, validInput().Customer)
	dup.Run(context.Background())

	o, err := f.orders.GetByPaymentID(context.Background(), "P1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, 1, stateCalls)
	assert.Equal(t, 3, stockOf(t, f.products, 1))
}

// racingOrderStore simulates losing the race between the existence check
// and order creation: no order is visible yet, but the store's unique
// payment-id constraint has already been claimed by a concurrent commit.
type racingOrderStore struct {
	creates int
}

func (s *racingOrderStore) Create(ctx context.Context, o *order.Order) error {
	s.creates++
	return order.ErrDuplicatePayment
}

func (s *racingOrderStore) GetByPaymentID(ctx context.Context, paymentID string) (*order.Order, error) {
	return nil, order.ErrNotFound
}

func (s *racingOrderStore) ExistsByPaymentID(ctx context.Context, paymentID string) (bool, error) {
	return false, nil
}

func TestWatcherLostRaceOnCreateIsNoop(t *testing.T) {
	products := memory.NewProductRepository()
	seedProducts(t, products, &catalog.Product{ID: 1, Price: 100, Stock: 5})
	store := &racingOrderStore{}
	gw := &stubGateway{stateFn: func(context.Context, string) (checkout.PaymentStatus, error) {
		return checkout.PaymentSucceeded, nil
	}}
	sched := &recordingScheduler{}
	m := metrics.NewCheckout(prometheus.NewRegistry())

	svc := NewService(
		NewReservationManager(products, nil),
		store,
		gw,
		sched,
		&seqIDs{},
		Options{Currency: "HUF", Locale: "hu-HU", PaymentWindow: 30 * time.Minute, GatewayTimeout: time.Second},
		m,
		nil,
	)

	_, err := svc.InitiatePayment(context.Background(), validInput())
	require.NoError(t, err)
	require.Len(t, sched.tasks, 1)

	sched.tasks[0](context.Background())

	// the store constraint held, so nothing is undone: the reservation
	// stays consumed and the run resolves as a no-op, not an error
	assert.Equal(t, 1, store.creates)
	assert.Equal(t, 3, stockOf(t, products, 1))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Confirmations.WithLabelValues("noop")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Confirmations.WithLabelValues("error")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.StockUnitsReleased))
}

func TestWatcherDoubleReleaseGuard(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &catalog.Product{ID: 1, Price: 100, Stock: 5})

	run := initiate(t, f)

	// both runs observe a failed payment and no order exists, so the
	// existence check cannot help; the watcher's own single-shot guard
	// must prevent the second restore
	run(context.Background())
	run(context.Background())
	assert.Equal(t, 5, stockOf(t, f.products, 1))
}

func TestWatcherScenarioFromCheckoutFlow(t *testing.T) {
	// cart [{product 1, qty 2}], stock 5, price 100
	f := newFixture(t)
	f.seed(t, &catalog.Product{ID: 1, Name: "ring", Price: 100, Stock: 5})
	succeeded := true
	f.gateway.stateFn = func(context.Context, string) (checkout.PaymentStatus, error) {
		if succeeded {
			return checkout.PaymentSucceeded, nil
		}
		return checkout.PaymentNotSucceeded, nil
	}

	// run 1: payment succeeds
	result, err := f.service.InitiatePayment(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "P1", result.PaymentID)
	assert.NotEmpty(t, result.PaymentURL)
	assert.Equal(t, 3, stockOf(t, f.products, 1))

	f.scheduler.tasks[0](context.Background())
	o, err := f.orders.GetByPaymentID(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, 2, o.Items[0].Amount)
	assert.Equal(t, int64(100), o.Items[0].OrderedPrice)
	assert.Equal(t, 3, stockOf(t, f.products, 1))

	// alternate run on a fresh fixture: payment fails
	f2 := newFixture(t)
	f2.seed(t, &catalog.Product{ID: 1, Name: "ring", Price: 100, Stock: 5})
	f2.gateway.stateFn = func(context.Context, string) (checkout.PaymentStatus, error) {
		return checkout.PaymentNotSucceeded, nil
	}
	_, err = f2.service.InitiatePayment(context.Background(), validInput())
	require.NoError(t, err)
	f2.scheduler.tasks[0](context.Background())

	assert.Equal(t, 5, stockOf(t, f2.products, 1))
	_, err = f2.orders.GetByPaymentID(context.Background(), "P1")
	assert.ErrorIs(t, err, order.ErrNotFound)
}
