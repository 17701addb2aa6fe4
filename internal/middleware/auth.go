package middleware // package middleware contains the Echo middleware shared by the route groups

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/talentbridge/marketplace-api/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ctxAccountID = "account_id"
	ctxRole      = "role"
)

// JWTAuth validates a Bearer access token and stores the account id and
// role in the request context.  Read them back with AccountID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			id, err := claims.AccountID()
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			c.Set(ctxAccountID, id)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}

// AccountID returns the authenticated account, if any.
func AccountID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxAccountID).(uint64)
	return id, ok
}

// Role returns the authenticated role, or "" for guests.
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}
