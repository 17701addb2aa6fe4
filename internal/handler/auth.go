package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/talentbridge/marketplace-api/internal/middleware"
	"github.com/talentbridge/marketplace-api/internal/model"
	"github.com/talentbridge/marketplace-api/internal/service"
)

// AuthService is the account lifecycle the auth endpoints drive.
type AuthService interface {
	Signup(ctx context.Context, in service.SignupInput) (model.Account, error)
	Login(ctx context.Context, email, password string) (service.Session, error)
	Refresh(ctx context.Context, raw string) (service.Session, error)
	Logout(ctx context.Context, raw string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	Me(ctx context.Context, accountID uint64) (model.Account, error)
	UpdateRole(ctx context.Context, accountID uint64, role string) (model.Account, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	svc AuthService
	log *zap.Logger
}

func NewAuthHandler(svc AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log.Named("auth-handler")}
}

// ----- DTOs -----

type signupReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof=talent creative client"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
type tokenReq struct {
	Token string `json:"token" validate:"required"`
}
type emailReq struct {
	Email string `json:"email" validate:"required,email"`
}
type resetReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}
type roleReq struct {
	Role string `json:"role" validate:"required,oneof=talent creative client"`
}

type accountResp struct {
	ID            uint64    `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	Suspended     bool      `json:"suspended"`
	CreatedAt     time.Time `json:"created_at"`
}

func toAccountResp(a model.Account) accountResp {
	return accountResp{
		ID:            a.ID,
		Email:         a.Email,
		Username:      a.Username,
		Role:          a.Role,
		EmailVerified: a.EmailVerified,
		Suspended:     a.Suspended,
		CreatedAt:     a.CreatedAt,
	}
}

func timeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// Signup creates an unverified account and emails a verification link.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	ctx, cancel := timeout(c)
	defer cancel()

	acc, err := h.svc.Signup(ctx, service.SignupInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return fail(c, h.log, "signup", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"account": toAccountResp(acc),
		"message": "verification email sent",
	})
}

// Login returns a session for a verified account.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	ctx, cancel := timeout(c)
	defer cancel()

	sess, err := h.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, h.log, "login", err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	ctx, cancel := timeout(c)
	defer cancel()

	sess, err := h.svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return fail(c, h.log, "refresh", err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Logout revokes the refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.svc.Logout(ctx, req.RefreshToken); err != nil {
		return fail(c, h.log, "logout", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// VerifyEmail accepts the token from the query string (link clicked in
// the email) or from a JSON body.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" && c.Request().Method == http.MethodPost {
		var req tokenReq
		if ok, err := bindAndValidate(c, &req); !ok {
			return err
		}
		token = req.Token
	}
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.svc.VerifyEmail(ctx, token); err != nil {
		return fail(c, h.log, "verify email", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email verified"})
}

// ResendVerification always answers 200 unless something broke.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.svc.ResendVerification(ctx, req.Email); err != nil {
		return fail(c, h.log, "resend verification", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "if the account exists and is unverified, an email is on its way"})
}

// ForgotPassword always answers 200 unless something broke.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.svc.ForgotPassword(ctx, req.Email); err != nil {
		return fail(c, h.log, "forgot password", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "if the account exists, a reset link is on its way"})
}

// ResetPassword sets a new password using a reset token.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.svc.ResetPassword(ctx, req.Token, req.Password); err != nil {
		return fail(c, h.log, "reset password", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.AccountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := timeout(c)
	defer cancel()

	acc, err := h.svc.Me(ctx, id)
	if err != nil {
		return fail(c, h.log, "me", err)
	}
	return c.JSON(http.StatusOK, toAccountResp(acc))
}

// UpdateRole switches the caller between talent, creative and client.
func (h *AuthHandler) UpdateRole(c echo.Context) error {
	id, ok := middleware.AccountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req roleReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	ctx, cancel := timeout(c)
	defer cancel()

	acc, err := h.svc.UpdateRole(ctx, id, req.Role)
	if err != nil {
		return fail(c, h.log, "update role", err)
	}
	return c.JSON(http.StatusOK, toAccountResp(acc))
}
