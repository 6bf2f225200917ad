package barion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mkaroly/webshop-checkout/internal/domain/checkout"
	"go.uber.org/zap"
)

const (
	startPath = "/v2/Payment/Start"
	statePath = "/v2/Payment/GetPaymentState"

	paymentTypeImmediate = "Immediate"
	statusSucceeded      = "Succeeded"

	// responses are small; cap reads so a broken gateway cannot balloon memory
	maxResponseBytes = 1 << 20
)

var ErrGateway = errors.New("barion: gateway error")

type Config struct {
	BaseURL     string
	POSKey      string
	PayeeEmail  string
	RedirectURL string
	CallbackURL string
	Timeout     time.Duration
}

// Client talks to the Barion payment API over HTTP.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// New builds a client; httpClient may be nil, in which case one with the
// configured timeout is used.
func New(cfg Config, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:  cfg,
		http: httpClient,
		log:  log.With(zap.String("component", "barion_client")),
	}
}

// CreatePayment starts a payment and returns the gateway's intent. A
// response without a payment id or gateway URL is an error: the caller has
// nothing to redirect the customer to.
func (c *Client) CreatePayment(ctx context.Context, req checkout.PaymentRequest) (*checkout.PaymentIntent, error) {
	body := paymentStartRequest{
		POSKey:           c.cfg.POSKey,
		PaymentType:      paymentTypeImmediate,
		PaymentRequestID: req.RequestID,
		FundingSources:   []string{"All"},
		Currency:         req.Currency,
		Locale:           req.Locale,
		PaymentWindow:    formatWindow(req.Window),
		GuestCheckOut:    true,
		RedirectURL:      c.cfg.RedirectURL,
		CallbackURL:      c.cfg.CallbackURL,
		Transactions: []transaction{
			{
				POSTransactionID: req.RequestID,
				Payee:            c.cfg.PayeeEmail,
				Total:            req.Amount,
				Items:            toWireItems(req.Items),
			},
		},
	}

	var resp paymentStartResponse
	if err := c.post(ctx, startPath, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrGateway, resp.Errors[0])
	}
	if resp.PaymentID == "" || resp.GatewayURL == "" {
		return nil, fmt.Errorf("%w: start response missing payment id or gateway url", ErrGateway)
	}

	c.log.Info("payment_started",
		zap.String("payment_id", resp.PaymentID),
		zap.String("payment_request_id", resp.PaymentRequestID),
	)
	return &checkout.PaymentIntent{
		PaymentID:  resp.PaymentID,
		GatewayURL: resp.GatewayURL,
		Status:     checkout.PaymentPending,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// PaymentState queries the payment once. Only "Succeeded" maps to a
// succeeded status; every other reported state is not succeeded.
func (c *Client) PaymentState(ctx context.Context, paymentID string) (checkout.PaymentStatus, error) {
	u, err := url.Parse(c.cfg.BaseURL + statePath)
	if err != nil {
		return checkout.PaymentNotSucceeded, fmt.Errorf("barion: state url: %w", err)
	}
	q := u.Query()
	q.Set("POSKey", c.cfg.POSKey)
	q.Set("PaymentId", paymentID)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return checkout.PaymentNotSucceeded, fmt.Errorf("barion: build state request: %w", err)
	}

	var resp paymentStateResponse
	if err := c.do(httpReq, &resp); err != nil {
		return checkout.PaymentNotSucceeded, err
	}
	if len(resp.Errors) > 0 {
		return checkout.PaymentNotSucceeded, fmt.Errorf("%w: %s", ErrGateway, resp.Errors[0])
	}

	if resp.Status == statusSucceeded {
		return checkout.PaymentSucceeded, nil
	}
	return checkout.PaymentNotSucceeded, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("barion: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("barion: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.do(httpReq, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("barion: %s: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("barion: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d: %s", ErrGateway, req.URL.Path, resp.StatusCode, truncate(data, 256))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("barion: decode response: %w", err)
	}
	return nil
}

func toWireItems(items []checkout.PaymentItem) []item {
	wire := make([]item, 0, len(items))
	for _, it := range items {
		wire = append(wire, item{
			Name:        it.Name,
			Description: it.Description,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice,
			ItemTotal:   it.ItemTotal,
			SKU:         it.SKU,
		})
	}
	return wire
}

// formatWindow renders a duration as Barion's hh:mm:ss payment window.
func formatWindow(d time.Duration) string {
	if d <= 0 {
		d = 30 * time.Minute
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
