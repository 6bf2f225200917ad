package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkaroly/webshop-checkout/internal/domain/catalog"
	"github.com/mkaroly/webshop-checkout/internal/domain/checkout"
	"github.com/mkaroly/webshop-checkout/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	createFn    func(ctx context.Context, req checkout.PaymentRequest) (*checkout.PaymentIntent, error)
	stateFn     func(ctx context.Context, paymentID string) (checkout.PaymentStatus, error)
	createCalls int
	lastRequest checkout.PaymentRequest
}

func (g *stubGateway) CreatePayment(ctx context.Context, req checkout.PaymentRequest) (*checkout.PaymentIntent, error) {
	g.createCalls++
	g.lastRequest = req
	if g.createFn != nil {
		return g.createFn(ctx, req)
	}
	return &checkout.PaymentIntent{
		PaymentID:  "P1",
		GatewayURL: "https://gateway.example/pay/P1",
		Status:     checkout.PaymentPending,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (g *stubGateway) PaymentState(ctx context.Context, paymentID string) (checkout.PaymentStatus, error) {
	if g.stateFn != nil {
		return g.stateFn(ctx, paymentID)
	}
	return checkout.PaymentNotSucceeded, nil
}

type recordingScheduler struct {
	tasks  []func(ctx context.Context)
	delays []time.Duration
	err    error
}

func (s *recordingScheduler) ScheduleAfter(d time.Duration, t func(ctx context.Context)) error {
	if s.err != nil {
		return s.err
	}
	s.tasks = append(s.tasks, t)
	s.delays = append(s.delays, d)
	return nil
}

type seqIDs struct{ n int }

func (g *seqIDs) NewID() string {
	g.n++
	return string(rune('a' + g.n - 1))
}

type fixture struct {
	products  *memory.ProductRepository
	orders    *memory.OrderRepository
	gateway   *stubGateway
	scheduler *recordingScheduler
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		products:  memory.NewProductRepository(),
		orders:    memory.NewOrderRepository(),
		gateway:   &stubGateway{},
		scheduler: &recordingScheduler{},
	}
	f.service = NewService(
		NewReservationManager(f.products, nil),
		f.orders,
		f.gateway,
		f.scheduler,
		&seqIDs{},
		Options{
			Currency:       "HUF",
			Locale:         "hu-HU",
			PaymentWindow:  30 * time.Minute,
			GatewayTimeout: time.Second,
		},
		nil,
		nil,
	)
	return f
}

func (f *fixture) seed(t *testing.T, products ...*catalog.Product) {
	t.Helper()
	seedProducts(t, f.products, products...)
}

func validInput() InitiatePaymentInput {
	return InitiatePaymentInput{
		Customer: checkout.CustomerInfo{
			Name:         "Kiss Anna",
			ZipCode:      "1051",
			Country:      "HU",
			City:         "Budapest",
			Street:       "Fo utca 1",
			PhoneNumber:  "+36301234567",
			EmailAddress: "anna@example.com",
		},
		Items:       []checkout.CartItem{{ProductID: 1, Quantity: 2}},
		TotalAmount: 200,
	}
}

func TestInitiatePaymentSuccess(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &catalog.Product{ID: 1, Name: "silver ring", SerialNumber: "SR-1", Price: 100, Stock: 5})

	result, err := f.service.InitiatePayment(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, "P1", result.PaymentID)
	assert.Equal(t, "https://gateway.example/pay/P1", result.PaymentURL)

	// stock already reserved, one watcher deferred by the payment window
	assert.Equal(t, 3, stockOf(t, f.products, 1))
	require.Len(t, f.scheduler.tasks, 1)
	assert.Equal(t, 30*time.Minute, f.scheduler.delays[0])
	assert.Equal(t, 1, f.gateway.createCalls)

	// the gateway request carries the full transaction line
	require.Len(t, f.gateway.lastRequest.Items, 1)
	line := f.gateway.lastRequest.Items[0]
	assert.Equal(t, "silver ring", line.Name)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, "piece", line.Unit)
	assert.Equal(t, int64(100), line.UnitPrice)
	assert.Equal(t, int64(200), line.ItemTotal)
	assert.Equal(t, "SR-1", line.SKU)
	assert.Equal(t, "HUF", f.gateway.lastRequest.Currency)
	assert.NotEmpty(t, f.gateway.lastRequest.RequestID)
}

func TestInitiatePaymentInsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &catalog.Product{ID: 1, Price: 100, Stock: 1})

	_, err := f.service.InitiatePayment(context.Background(), validInput())

	var resErr *ReservationError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, 1, stockOf(t, f.products, 1))
	assert.Empty(t, f.scheduler.tasks)
	// the gateway is never contacted on validation failure
	assert.Equal(t, 0, f.gateway.createCalls)
}

func TestInitiatePaymentGatewayErrorRollsBack(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &catalog.Product{ID: 1, Price: 100, Stock: 5})
	f.gateway.createFn = func(context.Context, checkout.PaymentRequest) (*checkout.PaymentIntent, error) {
		return nil, errors.New("connection refused")
	}

	_, err := f.service.InitiatePayment(context.Background(), validInput())

	require.ErrorIs(t, err, ErrGatewayInitiation)
	assert.Equal(t, 5, stockOf(t, f.products, 1))
	assert.Empty(t, f.scheduler.tasks)
}

func TestInitiatePaymentMissingRedirectURLRollsBack(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &catalog.Product{ID: 1, Price: 100, Stock: 5})
	f.gateway.createFn = func(context.Context, checkout.PaymentRequest) (*checkout.PaymentIntent, error) {
		return &checkout.PaymentIntent{PaymentID: "P1"}, nil // no gateway URL
	}

	_, err := f.service.InitiatePayment(context.Background(), validInput())

	require.ErrorIs(t, err, ErrGatewayInitiation)
	assert.Equal(t, 5, stockOf(t, f.products, 1))
	assert.Empty(t, f.scheduler.tasks)
}

func TestInitiatePaymentScheduleFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &catalog.Product{ID: 1, Price: 100, Stock: 5})
	f.scheduler.err = errors.New("queue full")

	_, err := f.service.InitiatePayment(context.Background(), validInput())

	require.Error(t, err)
	assert.Equal(t, 5, stockOf(t, f.products, 1))
}

func TestInitiatePaymentInvalidAmount(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &catalog.Product{ID: 1, Price: 100, Stock: 5})

	in := validInput()
	in.TotalAmount = 0
	_, err := f.service.InitiatePayment(context.Background(), in)

	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, 5, stockOf(t, f.products, 1))
	assert.Equal(t, 0, f.gateway.createCalls)
}
