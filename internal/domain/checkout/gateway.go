package checkout

import (
	"context"
	"time"
)

// PaymentItem is one line of the gateway transaction built from a cart
// item: snapshot price, computed line total, and the product's SKU.
type PaymentItem struct {
	Name        string
	Description string
	Quantity    int
	Unit        string
	UnitPrice   int64
	ItemTotal   int64
	SKU         string
}

// PaymentRequest is what the orchestrator hands to the gateway. RequestID
// is freshly generated per initiation; Window bounds how long the customer
// may take to complete the payment externally.
type PaymentRequest struct {
	RequestID string
	Amount    int64
	Currency  string
	Locale    string
	Window    time.Duration
	Items     []PaymentItem
}

// Gateway is the outbound port to the external payment provider.
//
// CreatePayment must return an intent with a non-empty payment id and
// redirect URL, or an error. PaymentState reports the provider's view of a
// payment; for this workflow only PaymentSucceeded is meaningful, every
// other status and every transport failure counts as not succeeded.
type Gateway interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentIntent, error)
	PaymentState(ctx context.Context, paymentID string) (PaymentStatus, error)
}
