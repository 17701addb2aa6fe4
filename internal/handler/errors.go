package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/talentbridge/marketplace-api/internal/middleware"
	"github.com/talentbridge/marketplace-api/internal/repository"
	"github.com/talentbridge/marketplace-api/internal/service"
	"github.com/talentbridge/marketplace-api/internal/utils"
)

// statusFor maps a known error to its HTTP status.  ok is false for
// errors that should surface as 500.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrTokenMalformed),
		errors.Is(err, service.ErrInvalidEvent),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, utils.ErrPasswordTooLong):
		return http.StatusBadRequest, true
	case errors.Is(err, service.ErrTokenMismatch),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, true
	case errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrEmailNotVerified),
		errors.Is(err, service.ErrAccountSuspended),
		errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, true
	case errors.Is(err, repository.ErrEmailExists),
		errors.Is(err, repository.ErrUsernameExists),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, true
	case errors.Is(err, repository.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, true
	}
	return 0, false
}

// fail writes the error response.  Unknown errors are logged with op and
// hidden behind a generic message.
func fail(c echo.Context, log *zap.Logger, op string, err error) error {
	if status, ok := statusFor(err); ok {
		msg := err.Error()
		if status == http.StatusNotFound {
			msg = "not found"
		}
		return c.JSON(status, echo.Map{"error": msg})
	}
	log.Error(op+" failed", zap.Error(err), zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// bindAndValidate decodes the JSON body into req and runs its validate tags.
// It returns false after writing a 400 response.
func bindAndValidate(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if errs := middleware.ValidateRequest(req); errs != nil {
		return false, middleware.RespondWithValidationError(c, errs)
	}
	return true, nil
}
