package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"APP_ENV":                "test",
		"APP_PORT":               "8080",
		"DB_USER":                "root",
		"DB_HOST":                "localhost",
		"DB_PORT":                "3306",
		"DB_NAME":                "marketplace",
		"JWT_SECRET":             "jwt",
		"TOKEN_HMAC_SECRET":      "hmac",
		"ACCESS_TOKEN_TTL_MIN":   "15",
		"REFRESH_TOKEN_TTL_DAYS": "30",
		"BCRYPT_COST":            "4",
	} {
		t.Setenv(k, v)
	}
}

func TestLoad(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_WEBHOOK_ALLOWED_IPS", " 52.31.139.75, 52.49.173.169 ,,")
	t.Setenv("WITHDRAWAL_FEE", "50")
	t.Setenv("APP_BASE_URL", "https://talentbridge.example/")
	t.Setenv("MAIL_TRANSPORT", "SMTP")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.5, 10.8.0.0/24")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "hmac", cfg.TokenSecret)
	assert.Equal(t, 15, cfg.AccessTTLMin)
	assert.Equal(t, []string{"52.31.139.75", "52.49.173.169"}, cfg.Webhook.AllowedIPs)
	assert.Equal(t, "50", cfg.WithdrawalFee.String())
	assert.Equal(t, "https://talentbridge.example", cfg.BaseURL)
	assert.Equal(t, "smtp", cfg.Mail.Transport)
	assert.Equal(t, "opportunistic", cfg.Mail.SMTPTLS)
	assert.Equal(t, []string{"10.0.0.5", "10.8.0.0/24"}, cfg.Webhook.TrustedProxies)
}

func TestLoadRateLimitConfigClampsValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	require.True(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 10*cfg.RefillInterval/2, cfg.TTL)
}
