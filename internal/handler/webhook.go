package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/talentbridge/marketplace-api/internal/service"
)

// LedgerService applies payment provider events.
type LedgerService interface {
	ApplyTransferEvent(ctx context.Context, ev service.TransferEvent) (service.Outcome, error)
}

type WebhookHandler struct {
	svc LedgerService
	log *zap.Logger
}

func NewWebhookHandler(svc LedgerService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{svc: svc, log: log.Named("webhook-handler")}
}

// Payment handles POST /v1/webhooks/payments.  Origin and signature are
// checked by middleware before this runs.  Unknown references and stale
// events still answer 200 so the provider stops retrying.
func (h *WebhookHandler) Payment(c echo.Context) error {
	var ev service.TransferEvent
	if err := c.Bind(&ev); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := timeout(c)
	defer cancel()

	out, err := h.svc.ApplyTransferEvent(ctx, ev)
	if err != nil {
		return fail(c, h.log, "apply transfer event", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "result": out.Result})
}
