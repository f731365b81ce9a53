package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openfashion_db", cfg.MongoDB)
	assert.Equal(t, 30, cfg.AccessTokenExpireMin)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL())
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout)
	assert.Equal(t, devSecretKey, cfg.SecretKey)
	assert.False(t, cfg.IsProduction())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("MONGO_URI", "memory://")
	t.Setenv("WORKER_COUNT", "2")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.UseMemoryStore())
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())
}

func TestValidateProduction(t *testing.T) {
	base := Config{
		Environment:            "production",
		AccessTokenExpireMin:   30,
		WorkerCount:            1,
		JobQueueSize:           1,
		RateLimitPerMinute:     60,
		AuthRateLimitPerMinute: 10,
		SecretKey:              "prod-secret",
		StripeSecretKey:        "sk_live_abc",
		StripeWebhookSecret:    "whsec_abc",
	}
	require.NoError(t, base.Validate())

	testKey := base
	testKey.StripeSecretKey = "sk_test_abc"
	assert.Error(t, testKey.Validate())

	noHook := base
	noHook.StripeWebhookSecret = ""
	assert.Error(t, noHook.Validate())

	noSecret := base
	noSecret.SecretKey = ""
	assert.Error(t, noSecret.Validate())

	dev := testKey
	dev.Environment = "development"
	assert.NoError(t, dev.Validate())
}

func TestValidateRejectsZeroRateLimits(t *testing.T) {
	base := Config{
		Environment:            "development",
		AccessTokenExpireMin:   30,
		WorkerCount:            1,
		JobQueueSize:           1,
		RateLimitPerMinute:     60,
		AuthRateLimitPerMinute: 10,
	}
	require.NoError(t, base.Validate())

	noAPI := base
	noAPI.RateLimitPerMinute = 0
	assert.ErrorContains(t, noAPI.Validate(), "RATE_LIMIT_PER_MINUTE")

	noAuth := base
	noAuth.AuthRateLimitPerMinute = -1
	assert.ErrorContains(t, noAuth.Validate(), "AUTH_RATE_LIMIT_PER_MINUTE")
}

func TestLoadRejectsZeroRateLimit(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")

	_, err := Load()
	assert.Error(t, err)
}
