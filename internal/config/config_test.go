package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, "INR", cfg.Currency)
	assert.Equal(t, "Storefront", cfg.MetricsNamespace)
	assert.Equal(t, 3, cfg.LowStockThreshold)
	assert.Equal(t, 48*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.RunLocal)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PRODUCTS_TABLE":        "products",
		"LOW_STOCK_THRESHOLD":   "7",
		"IDEMPOTENCY_TTL_HOURS": "24",
		"RUN_LOCAL":             "true",
		"CURRENCY":              " USD ",
	}))
	require.NoError(t, err)
	assert.Equal(t, "products", cfg.ProductsTable)
	assert.Equal(t, 7, cfg.LowStockThreshold)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.True(t, cfg.RunLocal)
	assert.Equal(t, "USD", cfg.Currency)
}

func TestFromEnvBadNumbers(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"LOW_STOCK_THRESHOLD": "three", "IDEMPOTENCY_TTL_HOURS": "x"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOW_STOCK_THRESHOLD")
	assert.Contains(t, err.Error(), "IDEMPOTENCY_TTL_HOURS")
	assert.Equal(t, 3, cfg.LowStockThreshold)
}

func TestValidate(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"PRODUCTS_TABLE": "products"}))
	require.NoError(t, err)

	err = cfg.ValidateAPI()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_JWT_SECRET")
	assert.NotContains(t, err.Error(), "PRODUCTS_TABLE")

	err = cfg.ValidateWorker()
	require.EqualError(t, err, "missing required settings: IDEMPOTENCY_TABLE")

	cfg.IdempotencyTable = "idempotency"
	assert.NoError(t, cfg.ValidateWorker())
}
