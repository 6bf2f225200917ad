package checkout

import (
	"time"

	"github.com/mkaroly/webshop-checkout/internal/domain/catalog"
)

// CartItem is the ephemeral per-product input of an initiation call. It is
// never persisted.
type CartItem struct {
	ProductID int64
	Quantity  int
}

type CustomerInfo struct {
	Name         string
	ZipCode      string
	Country      string
	City         string
	Street       string
	PhoneNumber  string
	EmailAddress string
}

// Reservation is a transient stock lock scoped to one initiation call. It
// carries the product as loaded at reservation time, so the unit price is
// snapshotted for the eventual order items. A reservation is either
// consumed (order created) or released (stock restored), exactly once.
type Reservation struct {
	Product  *catalog.Product
	Quantity int
}

type PaymentStatus string

const (
	PaymentPending      PaymentStatus = "pending"
	PaymentSucceeded    PaymentStatus = "succeeded"
	PaymentNotSucceeded PaymentStatus = "not_succeeded"
)

// PaymentIntent is the gateway-side record of a requested payment.
type PaymentIntent struct {
	PaymentID  string
	GatewayURL string
	Status     PaymentStatus
	CreatedAt  time.Time
}
