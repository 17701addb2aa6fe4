package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/talentbridge/marketplace-api/internal/middleware"
	"github.com/talentbridge/marketplace-api/internal/model"
	"github.com/talentbridge/marketplace-api/internal/service"
)

// WalletService serves the caller's balance, ledger and withdrawals.
type WalletService interface {
	GetWallet(ctx context.Context, accountID uint64) (model.Wallet, error)
	ListTransactions(ctx context.Context, accountID uint64, page, limit int) (service.TransactionPage, error)
	RequestWithdrawal(ctx context.Context, accountID uint64, amount decimal.Decimal) (model.TransactionHistory, error)
}

type WalletHandler struct {
	svc WalletService
	log *zap.Logger
}

func NewWalletHandler(svc WalletService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{svc: svc, log: log.Named("wallet-handler")}
}

type withdrawalReq struct {
	Amount decimal.Decimal `json:"amount"`
}

// GetWallet returns the caller's balance.
func (h *WalletHandler) GetWallet(c echo.Context) error {
	id, ok := middleware.AccountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := timeout(c)
	defer cancel()

	w, err := h.svc.GetWallet(ctx, id)
	if err != nil {
		return fail(c, h.log, "get wallet", err)
	}
	return c.JSON(http.StatusOK, w)
}

// ListTransactions returns ?page=&limit= of the caller's ledger.
func (h *WalletHandler) ListTransactions(c echo.Context) error {
	id, ok := middleware.AccountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	page, err := intQuery(c, "page", 1)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
	}
	limit, err := intQuery(c, "limit", service.DefaultPageSize)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
	}
	ctx, cancel := timeout(c)
	defer cancel()

	res, err := h.svc.ListTransactions(ctx, id, page, limit)
	if err != nil {
		return fail(c, h.log, "list transactions", err)
	}
	return c.JSON(http.StatusOK, res)
}

// RequestWithdrawal debits the wallet and records a pending withdrawal.
func (h *WalletHandler) RequestWithdrawal(c echo.Context) error {
	id, ok := middleware.AccountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req withdrawalReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := timeout(c)
	defer cancel()

	txn, err := h.svc.RequestWithdrawal(ctx, id, req.Amount)
	if err != nil {
		return fail(c, h.log, "request withdrawal", err)
	}
	return c.JSON(http.StatusCreated, txn)
}

func intQuery(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
