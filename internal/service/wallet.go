package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/talentbridge/marketplace-api/internal/model"
	"github.com/talentbridge/marketplace-api/internal/queue"
	"github.com/talentbridge/marketplace-api/internal/repository"
)

// ErrInvalidAmount rejects non-positive amounts and sub-cent precision.
var ErrInvalidAmount = errors.New("invalid amount")

// Pagination limits for the ledger listing.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// WithdrawalPublisher announces new withdrawals to the payout worker.
type WithdrawalPublisher interface {
	PublishWithdrawalRequested(ctx context.Context, ev queue.WithdrawalRequestedEvent) error
}

// TransactionPage is one page of ledger entries.
type TransactionPage struct {
	Items []model.TransactionHistory `json:"items"`
	Page  int                        `json:"page"`
	Limit int                        `json:"limit"`
	Total int                        `json:"total"`
}

// WalletService serves balances, the ledger listing and withdrawals.
type WalletService struct {
	db           *sql.DB
	wallets      *repository.WalletRepo
	transactions *repository.TransactionRepo
	pub          WithdrawalPublisher
	fee          decimal.Decimal
	log          *zap.Logger
}

// NewWalletService builds the service.  pub may be nil, in which case
// withdrawals are recorded but not announced.
func NewWalletService(db *sql.DB, wallets *repository.WalletRepo, transactions *repository.TransactionRepo,
	pub WithdrawalPublisher, fee decimal.Decimal, log *zap.Logger) *WalletService {
	return &WalletService{db: db, wallets: wallets, transactions: transactions, pub: pub, fee: fee, log: log.Named("wallet")}
}

func (s *WalletService) GetWallet(ctx context.Context, accountID uint64) (model.Wallet, error) {
	return s.wallets.GetByAccount(ctx, accountID)
}

// ListTransactions returns a page of the ledger, newest first.  page
// starts at 1; out of range values are clamped.
func (s *WalletService) ListTransactions(ctx context.Context, accountID uint64, page, limit int) (TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	items, total, err := s.transactions.ListByAccount(ctx, accountID, limit, (page-1)*limit)
	if err != nil {
		return TransactionPage{}, err
	}
	return TransactionPage{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// RequestWithdrawal debits amount plus the withdrawal fee and records a
// PENDING withdrawal in one transaction.  The payout worker is told
// afterwards; a failed publish is logged and does not undo the debit.
func (s *WalletService) RequestWithdrawal(ctx context.Context, accountID uint64, amount decimal.Decimal) (model.TransactionHistory, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(2)) {
		return model.TransactionHistory{}, ErrInvalidAmount
	}
	total := amount.Add(s.fee)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.TransactionHistory{}, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.wallets.DebitTx(ctx, tx, accountID, total); err != nil {
		return model.TransactionHistory{}, err
	}
	txn := model.TransactionHistory{
		Reference:        uuid.NewString(),
		AccountID:        accountID,
		Type:             model.TxTypeWithdrawal,
		Status:           model.TxStatusPending,
		Amount:           amount,
		SettlementAmount: amount,
		ProcessingFee:    s.fee,
		TotalFee:         s.fee,
	}
	if err := s.transactions.CreateTx(ctx, tx, &txn); err != nil {
		return model.TransactionHistory{}, fmt.Errorf("record withdrawal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.TransactionHistory{}, fmt.Errorf("commit: %w", err)
	}
	committed = true
	now := time.Now().UTC()
	txn.CreatedAt, txn.UpdatedAt = now, now

	if s.pub != nil {
		ev := queue.WithdrawalRequestedEvent{
			Reference:   txn.Reference,
			AccountID:   accountID,
			Amount:      amount.StringFixed(2),
			TotalFee:    s.fee.StringFixed(2),
			RequestedAt: now.Format(time.RFC3339),
		}
		if err := s.pub.PublishWithdrawalRequested(ctx, ev); err != nil {
			s.log.Warn("withdrawal event not published", zap.String("reference", txn.Reference), zap.Error(err))
		}
	}
	return txn, nil
}
