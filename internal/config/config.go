// Package config reads service settings from the environment, after loading an optional .env
// file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the api and worker binaries read.
type Config struct {
	AWSRegion string

	ProductsTable    string
	OrdersTable      string
	IdempotencyTable string
	CustomersTable   string
	CheckoutTable    string
	OrderEventsQueue string

	MediaBucket  string
	MediaBaseURL string

	PaymentBaseURL   string
	PaymentKeyID     string
	PaymentKeySecret string
	Currency         string

	GeoBaseURL       string
	GeoAPIKey        string
	GeoOriginPincode string

	AdminJWTSecret string

	MetricsNamespace  string
	LowStockThreshold int
	IdempotencyTTL    time.Duration

	Port     string
	RunLocal bool
}

// Load reads .env (if present) and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("[config] no .env loaded, using process environment: %v", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Numeric settings that do not parse are an error.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	var errs []error
	atoi := func(key string, def int) int {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return n
	}

	cfg := Config{
		AWSRegion:         get("AWS_REGION", "us-east-1"),
		ProductsTable:     get("PRODUCTS_TABLE", ""),
		OrdersTable:       get("ORDERS_TABLE", ""),
		IdempotencyTable:  get("IDEMPOTENCY_TABLE", ""),
		CustomersTable:    get("CUSTOMERS_TABLE", ""),
		CheckoutTable:     get("CHECKOUT_TABLE", ""),
		OrderEventsQueue:  get("ORDER_EVENTS_QUEUE_URL", ""),
		MediaBucket:       get("MEDIA_BUCKET", ""),
		MediaBaseURL:      get("MEDIA_BASE_URL", ""),
		PaymentBaseURL:    get("PAYMENT_BASE_URL", "https://api.razorpay.com"),
		PaymentKeyID:      get("PAYMENT_KEY_ID", ""),
		PaymentKeySecret:  get("PAYMENT_KEY_SECRET", ""),
		Currency:          get("CURRENCY", "INR"),
		GeoBaseURL:        get("GEO_BASE_URL", "https://maps.googleapis.com"),
		GeoAPIKey:         get("GEO_API_KEY", ""),
		GeoOriginPincode:  get("GEO_ORIGIN_PINCODE", ""),
		AdminJWTSecret:    get("ADMIN_JWT_SECRET", ""),
		MetricsNamespace:  get("METRICS_NAMESPACE", "Storefront"),
		LowStockThreshold: atoi("LOW_STOCK_THRESHOLD", 3),
		IdempotencyTTL:    time.Duration(atoi("IDEMPOTENCY_TTL_HOURS", 48)) * time.Hour,
		Port:              get("PORT", "8080"),
		RunLocal:          get("RUN_LOCAL", "") == "true",
	}
	if len(errs) > 0 {
		return cfg, errors.Join(errs...)
	}
	return cfg, nil
}

// ValidateAPI reports every setting the api binary cannot run without.
func (c Config) ValidateAPI() error {
	return missing(map[string]string{
		"PRODUCTS_TABLE":     c.ProductsTable,
		"ORDERS_TABLE":       c.OrdersTable,
		"IDEMPOTENCY_TABLE":  c.IdempotencyTable,
		"CUSTOMERS_TABLE":    c.CustomersTable,
		"CHECKOUT_TABLE":     c.CheckoutTable,
		"MEDIA_BUCKET":       c.MediaBucket,
		"PAYMENT_KEY_ID":     c.PaymentKeyID,
		"PAYMENT_KEY_SECRET": c.PaymentKeySecret,
		"ADMIN_JWT_SECRET":   c.AdminJWTSecret,
	})
}

// ValidateWorker reports every setting the worker binary cannot run without.
func (c Config) ValidateWorker() error {
	return missing(map[string]string{
		"PRODUCTS_TABLE":    c.ProductsTable,
		"IDEMPOTENCY_TABLE": c.IdempotencyTable,
	})
}

func missing(required map[string]string) error {
	var names []string
	for k, v := range required {
		if v == "" {
			names = append(names, k)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	return fmt.Errorf("missing required settings: %s", strings.Join(names, ", "))
}
