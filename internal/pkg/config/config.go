package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every runtime knob, loaded from the environment with
// sensible defaults so the service boots with no configuration at all
// (in-memory stores, demo gateway settings).
type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string

	// Empty SQLitePath selects the in-memory stores.
	SQLitePath string

	BarionBaseURL     string
	BarionPOSKey      string
	BarionPayeeEmail  string
	BarionRedirectURL string
	// BarionCallbackURL is forwarded to the gateway only when the operator
	// provides one; this service serves no callback endpoint, confirmation
	// is poll-based.
	BarionCallbackURL string
	Currency          string
	Locale            string

	// PaymentWindow is how long the customer has to complete the payment
	// externally; the confirmation watcher fires only after this much
	// time has passed.
	PaymentWindow time.Duration
	// GatewayTimeout bounds each HTTP call to the gateway.
	GatewayTimeout time.Duration

	Workers   int
	QueueSize int
	// DrainTimeout bounds how long shutdown waits for queued watchers.
	DrainTimeout time.Duration
}

func FromEnv() Config {
	return Config{
		ServiceName: getenvDefault("SERVICE_NAME", "webshop-checkout"),
		Env:         getenvDefault("ENV", "dev"),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),

		SQLitePath: os.Getenv("SQLITE_PATH"),

		BarionBaseURL:     getenvDefault("BARION_BASE_URL", "https://api.test.barion.com"),
		BarionPOSKey:      os.Getenv("BARION_POS_KEY"),
		BarionPayeeEmail:  os.Getenv("BARION_PAYEE_EMAIL"),
		BarionRedirectURL: getenvDefault("BARION_REDIRECT_URL", "http://localhost:3000/payment-result"),
		BarionCallbackURL: os.Getenv("BARION_CALLBACK_URL"),
		Currency:          getenvDefault("CURRENCY", "HUF"),
		Locale:            getenvDefault("LOCALE", "hu-HU"),

		PaymentWindow:  getenvDuration("PAYMENT_WINDOW", 30*time.Minute),
		GatewayTimeout: getenvDuration("GATEWAY_TIMEOUT", 10*time.Second),

		Workers:      getenvInt("WORKERS", 4),
		QueueSize:    getenvInt("QUEUE_SIZE", 256),
		DrainTimeout: getenvDuration("DRAIN_TIMEOUT", 30*time.Second),
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
