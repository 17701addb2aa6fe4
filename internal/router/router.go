package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/talentbridge/marketplace-api/internal/handler"
	"github.com/talentbridge/marketplace-api/internal/metrics"
	"github.com/talentbridge/marketplace-api/internal/middleware"
	"github.com/talentbridge/marketplace-api/internal/model"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers the credential endpoints under /v1/auth, all
// behind limiter, and the authenticated profile endpoints under /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limiter)
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.GET("/verify-email", a.VerifyEmail)
	g.POST("/verify-email", a.VerifyEmail)
	g.POST("/resend-verification", a.ResendVerification)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)

	me := e.Group("/v1/me", middleware.JWTAuth(jwtSecret))
	me.GET("", a.Me)
	me.PUT("/role", a.UpdateRole)
}

// RegisterWallet registers the caller's wallet endpoints.
func RegisterWallet(e *echo.Echo, w *handler.WalletHandler, jwtSecret string) {
	g := e.Group("/v1/wallet", middleware.JWTAuth(jwtSecret))
	g.GET("", w.GetWallet)
	g.GET("/transactions", w.ListTransactions)
	g.POST("/withdrawals", w.RequestWithdrawal)
}

// RegisterWebhooks registers the payment provider callback.  guards run
// in order before the handler (origin allow-list, then signature).
func RegisterWebhooks(e *echo.Echo, wh *handler.WebhookHandler, guards ...echo.MiddlewareFunc) {
	e.POST("/v1/webhooks/payments", wh.Payment, guards...)
}

// RegisterAdmin registers admin-only endpoints.
func RegisterAdmin(e *echo.Echo, ad *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	g.PATCH("/accounts/:id/suspension", ad.SetSuspension)
}
