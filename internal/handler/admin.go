package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/talentbridge/marketplace-api/internal/middleware"
)

// SuspensionService toggles account suspension.
type SuspensionService interface {
	SetSuspension(ctx context.Context, actorID, targetID uint64, suspended bool) error
}

type AdminHandler struct {
	svc SuspensionService
	log *zap.Logger
}

func NewAdminHandler(svc SuspensionService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, log: log.Named("admin-handler")}
}

type suspensionReq struct {
	Suspended *bool `json:"suspended" validate:"required"`
}

// SetSuspension handles PATCH /v1/admin/accounts/:id/suspension.
func (h *AdminHandler) SetSuspension(c echo.Context) error {
	actor, ok := middleware.AccountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	target, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || target == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account id"})
	}
	var req suspensionReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.svc.SetSuspension(ctx, actor, target, *req.Suspended); err != nil {
		return fail(c, h.log, "set suspension", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": target, "suspended": *req.Suspended})
}
