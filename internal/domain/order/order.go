package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("order: not found")
	ErrDuplicatePayment = errors.New("order: payment id already used by another order")
	ErrNoItems          = errors.New("order: at least one item is required")
	ErrInvalidQuantity  = errors.New("order: item amount must be greater than zero")
	ErrPaymentIDMissing = errors.New("order: payment id is required")
)

type Status string

const (
	// StatusProcessing is the status of a freshly confirmed order awaiting
	// fulfilment.
	StatusProcessing Status = "processing"
)

// Order is created once, only after the gateway confirms payment. PaymentID
// is the idempotency key of the whole checkout workflow: at most one order
// may ever reference a given payment id.
type Order struct {
	ID              string
	Status          Status
	OrderDate       time.Time
	PaymentID       string
	ShippingAddress ShippingAddress
	Invoice         Invoice
	Items           []Item
}

// Item keeps the price the customer saw at initiation time, not the
// product's current price.
type Item struct {
	ProductID    int64
	Amount       int
	OrderedPrice int64
}

type ShippingAddress struct {
	Name        string
	Email       string
	PhoneNumber string
	ZipCode     string
	Country     string
	City        string
	Street      string
}

type Invoice struct {
	CustomerName        string
	CustomerEmail       string
	CustomerPhoneNumber string
	CustomerZipCode     string
	CustomerCountry     string
	CustomerCity        string
	CustomerStreet      string
	CreationDate        time.Time
	PaymentMethod       string
}

func New(id, paymentID string, items []Item, addr ShippingAddress, inv Invoice) (*Order, error) {
	if paymentID == "" {
		return nil, ErrPaymentIDMissing
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	for _, item := range items {
		if item.Amount <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	return &Order{
		ID:              id,
		Status:          StatusProcessing,
		OrderDate:       time.Now().UTC(),
		PaymentID:       paymentID,
		ShippingAddress: addr,
		Invoice:         inv,
		Items:           append([]Item(nil), items...),
	}, nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	return &clone
}
