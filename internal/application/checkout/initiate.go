package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkaroly/webshop-checkout/internal/domain/checkout"
	"github.com/mkaroly/webshop-checkout/internal/domain/order"
	"github.com/mkaroly/webshop-checkout/internal/pkg/logging"
	"github.com/mkaroly/webshop-checkout/internal/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	tracerName = "webshop.checkout"

	// one unit of a physical product on a gateway transaction line
	itemUnit = "piece"

	outcomeSuccess          = "success"
	outcomeValidationFailed = "validation_failed"
	outcomeGatewayFailed    = "gateway_failed"
	outcomeError            = "error"
)

var (
	// ErrGatewayInitiation covers a failed create-payment call as well as a
	// response missing the payment id or redirect URL.
	ErrGatewayInitiation = errors.New("checkout: payment gateway rejected initiation")
	ErrInvalidAmount     = errors.New("checkout: total amount must be greater than zero")
)

// Options carries the fixed gateway parameters of every initiation.
type Options struct {
	Currency      string
	Locale        string
	PaymentWindow time.Duration
	// GatewayTimeout bounds the watcher's single status query.
	GatewayTimeout time.Duration
}

// Service is the payment initiation orchestrator: it locks stock, creates
// the external payment, and schedules the confirmation watcher.
type Service struct {
	reservations *ReservationManager
	orders       order.Repository
	gateway      checkout.Gateway
	tasks        Scheduler
	ids          IDGenerator
	opts         Options
	metrics      *metrics.Checkout
	log          *zap.Logger
}

func NewService(
	reservations *ReservationManager,
	orders order.Repository,
	gateway checkout.Gateway,
	tasks Scheduler,
	ids IDGenerator,
	opts Options,
	m *metrics.Checkout,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		reservations: reservations,
		orders:       orders,
		gateway:      gateway,
		tasks:        tasks,
		ids:          ids,
		opts:         opts,
		metrics:      m,
		log:          log.With(zap.String("component", "checkout_service")),
	}
}

type InitiatePaymentInput struct {
	Customer    checkout.CustomerInfo
	Items       []checkout.CartItem
	TotalAmount int64
}

type InitiatePaymentResult struct {
	PaymentID  string
	PaymentURL string
}

// InitiatePayment runs the synchronous half of the workflow. The gateway
// is contacted only after stock is reserved, and at most once; the caller
// gets the redirect URL back immediately while the confirmation watcher
// resolves the outcome later.
func (s *Service) InitiatePayment(ctx context.Context, in InitiatePaymentInput) (_ *InitiatePaymentResult, err error) {
	logger := logging.FromContext(ctx).With(zap.String("component", "checkout_service"))

	ctx, span := otel.Tracer(tracerName).Start(ctx, "Checkout.InitiatePayment")
	span.SetAttributes(
		attribute.Int("cart.items", len(in.Items)),
		attribute.Int64("cart.total_amount", in.TotalAmount),
	)
	outcome := outcomeSuccess
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		if s.metrics != nil {
			s.metrics.Initiations.WithLabelValues(outcome).Inc()
		}
	}()

	if in.TotalAmount <= 0 {
		outcome = outcomeValidationFailed
		return nil, ErrInvalidAmount
	}

	reservations, err := s.reservations.Reserve(ctx, in.Items)
	if err != nil {
		var resErr *ReservationError
		if errors.As(err, &resErr) || errors.Is(err, ErrEmptyCart) {
			outcome = outcomeValidationFailed
			logger.Info("initiation_rejected", zap.String("reason", err.Error()))
		} else {
			outcome = outcomeError
			logger.Error("reservation_failed", zap.Error(err))
		}
		return nil, err
	}

	req := s.buildPaymentRequest(in, reservations)
	span.SetAttributes(attribute.String("payment.request_id", req.RequestID))

	intent, err := s.gateway.CreatePayment(ctx, req)
	if err == nil && (intent == nil || intent.PaymentID == "" || intent.GatewayURL == "") {
		err = fmt.Errorf("%w: response missing payment id or redirect url", ErrGatewayInitiation)
	}
	if err != nil {
		outcome = outcomeGatewayFailed
		logger.Error("gateway_create_failed", zap.Error(err))
		s.rollback(ctx, reservations, logger)
		if !errors.Is(err, ErrGatewayInitiation) {
			err = fmt.Errorf("%w: %w", ErrGatewayInitiation, err)
		}
		return nil, err
	}

	// The watcher fires only after the customer's whole payment window
	// has elapsed.
	w := s.newWatcher(intent.PaymentID, reservations, in.Customer)
	if err := s.tasks.ScheduleAfter(s.opts.PaymentWindow, w.Run); err != nil {
		// Nothing will ever resolve this reservation if the watcher cannot
		// run, so treat it like a failed initiation and release the stock.
		// The payment may still complete on the gateway side; that trade is
		// logged loudly.
		outcome = outcomeError
		logger.Error("watcher_schedule_failed",
			zap.String("payment_id", intent.PaymentID),
			zap.Error(err),
		)
		s.rollback(ctx, reservations, logger)
		return nil, fmt.Errorf("checkout: schedule confirmation: %w", err)
	}

	logger.Info("payment_initiated",
		zap.String("payment_id", intent.PaymentID),
		zap.Int("items", len(in.Items)),
		zap.Int64("total_amount", in.TotalAmount),
	)
	return &InitiatePaymentResult{
		PaymentID:  intent.PaymentID,
		PaymentURL: intent.GatewayURL,
	}, nil
}

func (s *Service) buildPaymentRequest(in InitiatePaymentInput, reservations []checkout.Reservation) checkout.PaymentRequest {
	items := make([]checkout.PaymentItem, 0, len(reservations))
	for _, res := range reservations {
		items = append(items, checkout.PaymentItem{
			Name:        res.Product.Name,
			Description: res.Product.Description,
			Quantity:    res.Quantity,
			Unit:        itemUnit,
			UnitPrice:   res.Product.Price,
			ItemTotal:   res.Product.Price * int64(res.Quantity),
			SKU:         res.Product.SerialNumber,
		})
	}

	return checkout.PaymentRequest{
		RequestID: s.ids.NewID(),
		Amount:    in.TotalAmount,
		Currency:  s.opts.Currency,
		Locale:    s.opts.Locale,
		Window:    s.opts.PaymentWindow,
		Items:     items,
	}
}

// rollback restores stock after a failed initiation. The request context
// may already be on its way out, so the release runs detached from it.
func (s *Service) rollback(ctx context.Context, reservations []checkout.Reservation, logger *zap.Logger) {
	releaseCtx := context.WithoutCancel(ctx)
	if err := s.reservations.Release(releaseCtx, reservations); err != nil {
		logger.Error("reservation_rollback_failed", zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.StockUnitsReleased.Add(float64(totalUnits(reservations)))
	}
	logger.Info("reservation_rolled_back", zap.Int("items", len(reservations)))
}

func totalUnits(reservations []checkout.Reservation) int {
	total := 0
	for _, res := range reservations {
		total += res.Quantity
	}
	return total
}
