package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/talentbridge/marketplace-api/internal/metrics"
	"github.com/talentbridge/marketplace-api/internal/model"
	"github.com/talentbridge/marketplace-api/internal/repository"
)

// ErrInvalidEvent rejects a webhook body before any lookup happens.
var ErrInvalidEvent = errors.New("invalid transfer event")

// Provider event names that return money to the wallet.
const (
	EventTransferReversed = "transfer.reversed"
	EventTransferFailed   = "transfer.failed"
)

// TransferEvent is the payment provider's webhook body.
type TransferEvent struct {
	Event string             `json:"event"`
	Data  *TransferEventData `json:"data"`
}

// TransferEventData carries the provider's view of one transfer.  Amount
// is in minor currency units.
type TransferEventData struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// Outcome results.
const (
	OutcomeUnknownReference = "unknown_reference"
	OutcomeStale            = "stale"
	OutcomeUpdated          = "updated"
	OutcomeCredited         = "credited"
)

// Outcome describes what ApplyTransferEvent did.
type Outcome struct {
	Result    string          `json:"result"`
	Reference string          `json:"reference"`
	Status    string          `json:"status,omitempty"`
	Credited  decimal.Decimal `json:"credited"`
}

// LedgerService reconciles provider webhooks with the ledger and wallets.
type LedgerService struct {
	db           *sql.DB
	transactions *repository.TransactionRepo
	wallets      *repository.WalletRepo
	log          *zap.Logger
}

func NewLedgerService(db *sql.DB, transactions *repository.TransactionRepo,
	wallets *repository.WalletRepo, log *zap.Logger) *LedgerService {
	return &LedgerService{db: db, transactions: transactions, wallets: wallets, log: log.Named("ledger")}
}

func isRefundEvent(event string) bool {
	return event == EventTransferReversed || event == EventTransferFailed
}

func isRefundStatus(status string) bool {
	return status == model.TxStatusReversed || status == model.TxStatusFailed
}

// ApplyTransferEvent applies ev to the transaction it references and, for
// a reversal or failure, credits the owner's wallet with the settled
// amount plus the fees taken at initiation.
//
// The row is locked for the duration of the transaction.  A stale event
// (see model.IsStaleTransition) is ignored, and money moves back at
// most once per transaction: only when the stored status was neither
// REVERSED nor FAILED, and the same transaction writes one of them.  A
// refund event must therefore report FAILED or REVERSED and a positive
// amount.  An unknown reference is a no-op, not an error.
func (s *LedgerService) ApplyTransferEvent(ctx context.Context, ev TransferEvent) (Outcome, error) {
	event := strings.ToLower(strings.TrimSpace(ev.Event))
	if event == "" || ev.Data == nil || strings.TrimSpace(ev.Data.Reference) == "" {
		return Outcome{}, ErrInvalidEvent
	}
	status, ok := model.NormalizeTxStatus(ev.Data.Status)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, ev.Data.Status)
	}
	if ev.Data.Amount < 0 {
		return Outcome{}, fmt.Errorf("%w: negative amount", ErrInvalidEvent)
	}
	if isRefundEvent(event) {
		if !isRefundStatus(status) {
			return Outcome{}, fmt.Errorf("%w: %s reported with status %s", ErrInvalidEvent, event, status)
		}
		if ev.Data.Amount == 0 {
			return Outcome{}, fmt.Errorf("%w: %s without amount", ErrInvalidEvent, event)
		}
	}
	out, err := s.apply(ctx, event, status, ev.Data)
	if err != nil {
		metrics.LedgerEvent(event, "error")
		return Outcome{}, err
	}
	metrics.LedgerEvent(event, out.Result)
	return out, nil
}

func (s *LedgerService) apply(ctx context.Context, event, status string, data *TransferEventData) (Outcome, error) {
	ref := strings.TrimSpace(data.Reference)
	log := s.log.With(zap.String("reference", ref), zap.String("event", event))
	out := Outcome{Reference: ref, Credited: decimal.Zero}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	txn, err := s.transactions.LockByReferenceTx(ctx, tx, ref)
	if errors.Is(err, sql.ErrNoRows) {
		log.Warn("webhook for unknown reference")
		out.Result = OutcomeUnknownReference
		return out, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("lock transaction: %w", err)
	}

	prior := txn.Status
	out.Status = prior
	if model.IsStaleTransition(prior, status) {
		log.Info("stale webhook ignored", zap.String("stored", prior), zap.String("received", status))
		out.Result = OutcomeStale
		return out, nil
	}

	if err := s.transactions.UpdateStatusTx(ctx, tx, txn.ID, status); err != nil {
		return Outcome{}, fmt.Errorf("update status: %w", err)
	}
	out.Status = status
	out.Result = OutcomeUpdated

	if isRefundEvent(event) && isRefundStatus(status) && !isRefundStatus(prior) {
		amount := decimal.New(data.Amount, -2).Add(txn.TotalFee)
		if err := s.wallets.CreditTx(ctx, tx, txn.AccountID, amount); err != nil {
			return Outcome{}, fmt.Errorf("credit wallet: %w", err)
		}
		out.Credited = amount
		out.Result = OutcomeCredited
	}

	if err := tx.Commit(); err != nil {
		return Outcome{}, fmt.Errorf("commit: %w", err)
	}
	committed = true
	log.Info("webhook applied", zap.String("from", prior), zap.String("to", status),
		zap.String("credited", out.Credited.StringFixed(2)))
	return out, nil
}
