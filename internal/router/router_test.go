package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/talentbridge/marketplace-api/internal/handler"
)

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func noop(next echo.HandlerFunc) echo.HandlerFunc { return next }

func TestAllRoutesRegistered(t *testing.T) {
	e := echo.New()
	log := zap.NewNop()
	RegisterRoutes(e, okPinger{})
	RegisterAuth(e, handler.NewAuthHandler(nil, log), "s", noop)
	RegisterWallet(e, handler.NewWalletHandler(nil, log), "s")
	RegisterWebhooks(e, handler.NewWebhookHandler(nil, log))
	RegisterAdmin(e, handler.NewAdminHandler(nil, log), "s")

	got := map[string]bool{}
	for _, r := range e.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /metrics",
		"POST /v1/auth/signup",
		"POST /v1/auth/login",
		"POST /v1/auth/refresh",
		"POST /v1/auth/logout",
		"GET /v1/auth/verify-email",
		"POST /v1/auth/verify-email",
		"POST /v1/auth/resend-verification",
		"POST /v1/auth/forgot-password",
		"POST /v1/auth/reset-password",
		"GET /v1/me",
		"PUT /v1/me/role",
		"GET /v1/wallet",
		"GET /v1/wallet/transactions",
		"POST /v1/wallet/withdrawals",
		"POST /v1/webhooks/payments",
		"PATCH /v1/admin/accounts/:id/suspension",
	} {
		assert.True(t, got[want], "missing route %s", want)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	e := echo.New()
	log := zap.NewNop()
	RegisterWallet(e, handler.NewWalletHandler(nil, log), "s")
	RegisterAdmin(e, handler.NewAdminHandler(nil, log), "s")

	for _, path := range []string{"/v1/wallet", "/v1/wallet/transactions"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/v1/admin/accounts/3/suspension", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthz(t *testing.T) {
	e := echo.New()
	RegisterRoutes(e, okPinger{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
