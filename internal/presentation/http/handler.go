package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	appcheckout "github.com/mkaroly/webshop-checkout/internal/application/checkout"
	"github.com/mkaroly/webshop-checkout/internal/domain/checkout"
	"github.com/mkaroly/webshop-checkout/internal/pkg/metrics"
	"go.uber.org/zap"
)

type Handler struct {
	checkout *appcheckout.Service
	log      *zap.Logger
	metrics  *metrics.HTTP
}

func NewHandler(checkoutSvc *appcheckout.Service, log *zap.Logger, m *metrics.HTTP) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		checkout: checkoutSvc,
		log:      log.With(zap.String("component", "http_server")),
		metrics:  m,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.withTrace)
	r.Use(h.withRequestLogger)
	r.Use(h.withAccessLog)

	r.Post("/api/order/initiate-payment", h.handleInitiatePayment)
	r.Get("/health", h.handleHealth)

	return r
}

type customerInfoRequest struct {
	Name         string `json:"name"`
	ZipCode      string `json:"zipCode"`
	Country      string `json:"country"`
	City         string `json:"city"`
	Street       string `json:"street"`
	PhoneNumber  string `json:"phoneNumber"`
	EmailAddress string `json:"emailAddress"`
}

type cartItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type initiatePaymentRequest struct {
	CustomerInfo customerInfoRequest `json:"customerInfo"`
	CartItems    []cartItemRequest   `json:"cartItems"`
	TotalAmount  int64               `json:"totalAmount"`
}

type paymentResponse struct {
	IsSuccessful bool   `json:"isSuccessful"`
	PaymentURL   string `json:"paymentUrl,omitempty"`
	ErrorBody    string `json:"errorBody,omitempty"`
}

func (h *Handler) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req initiatePaymentRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, paymentResponse{ErrorBody: "invalid request body: " + err.Error()})
		return
	}

	items := make([]checkout.CartItem, 0, len(req.CartItems))
	for _, it := range req.CartItems {
		items = append(items, checkout.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	result, err := h.checkout.InitiatePayment(r.Context(), appcheckout.InitiatePaymentInput{
		Customer: checkout.CustomerInfo{
			Name:         req.CustomerInfo.Name,
			ZipCode:      req.CustomerInfo.ZipCode,
			Country:      req.CustomerInfo.Country,
			City:         req.CustomerInfo.City,
			Street:       req.CustomerInfo.Street,
			PhoneNumber:  req.CustomerInfo.PhoneNumber,
			EmailAddress: req.CustomerInfo.EmailAddress,
		},
		Items:       items,
		TotalAmount: req.TotalAmount,
	})
	if err != nil {
		writeJSON(w, statusForError(err), paymentResponse{ErrorBody: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, paymentResponse{
		IsSuccessful: true,
		PaymentURL:   result.PaymentURL,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func statusForError(err error) int {
	var resErr *appcheckout.ReservationError
	switch {
	case errors.As(err, &resErr),
		errors.Is(err, appcheckout.ErrEmptyCart),
		errors.Is(err, appcheckout.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, appcheckout.ErrGatewayInitiation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
