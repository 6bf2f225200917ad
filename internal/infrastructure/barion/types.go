package barion

import "fmt"

// Wire types for the Barion v2 payment API, limited to the fields this
// workflow reads and writes.

type paymentStartRequest struct {
	POSKey           string        `json:"POSKey"`
	PaymentType      string        `json:"PaymentType"`
	PaymentRequestID string        `json:"PaymentRequestId"`
	FundingSources   []string      `json:"FundingSources"`
	Currency         string        `json:"Currency"`
	Locale           string        `json:"Locale"`
	PaymentWindow    string        `json:"PaymentWindow"`
	GuestCheckOut    bool          `json:"GuestCheckOut"`
	RedirectURL      string        `json:"RedirectUrl,omitempty"`
	CallbackURL      string        `json:"CallbackUrl,omitempty"`
	Transactions     []transaction `json:"Transactions"`
}

type transaction struct {
	POSTransactionID string `json:"POSTransactionId"`
	Payee            string `json:"Payee"`
	Total            int64  `json:"Total"`
	Items            []item `json:"Items"`
}

type item struct {
	Name        string `json:"Name"`
	Description string `json:"Description"`
	Quantity    int    `json:"Quantity"`
	Unit        string `json:"Unit"`
	UnitPrice   int64  `json:"UnitPrice"`
	ItemTotal   int64  `json:"ItemTotal"`
	SKU         string `json:"SKU"`
}

type paymentStartResponse struct {
	PaymentID        string       `json:"PaymentId"`
	PaymentRequestID string       `json:"PaymentRequestId"`
	Status           string       `json:"Status"`
	GatewayURL       string       `json:"GatewayUrl"`
	RedirectURL      string       `json:"RedirectUrl"`
	Errors           []apiError   `json:"Errors"`
}

type paymentStateResponse struct {
	PaymentID string     `json:"PaymentId"`
	Status    string     `json:"Status"`
	Errors    []apiError `json:"Errors"`
}

type apiError struct {
	ErrorCode   string `json:"ErrorCode"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
}

func (e apiError) String() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Title)
}
