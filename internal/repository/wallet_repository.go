package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/talentbridge/marketplace-api/internal/model"
)

// WalletRepo reads and mutates the per-account wallet balance.  Balance
// changes only happen inside a caller-supplied transaction.
type WalletRepo struct{ db *sql.DB }

func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{db: db} }

// CreateTx opens a zero-balance wallet for a new account.
func (r *WalletRepo) CreateTx(ctx context.Context, tx *sql.Tx, accountID uint64) error {
	_, err := tx.ExecContext(ctx, "INSERT INTO wallets (account_id, balance) VALUES (?, 0)", accountID)
	return err
}

// GetByAccount returns the wallet or sql.ErrNoRows.
func (r *WalletRepo) GetByAccount(ctx context.Context, accountID uint64) (model.Wallet, error) {
	var w model.Wallet
	err := r.db.QueryRowContext(ctx,
		"SELECT account_id, balance, updated_at FROM wallets WHERE account_id=? LIMIT 1", accountID).
		Scan(&w.AccountID, &w.Balance, &w.UpdatedAt)
	return w, err
}

// CreditTx adds amount to the balance.  Returns sql.ErrNoRows when the
// account has no wallet.
func (r *WalletRepo) CreditTx(ctx context.Context, tx *sql.Tx, accountID uint64, amount decimal.Decimal) error {
	return expectOne(tx.ExecContext(ctx,
		"UPDATE wallets SET balance = balance + ? WHERE account_id=?", amount, accountID))
}

// DebitTx subtracts amount if the balance covers it.  The guard lives in
// the WHERE clause so the check and the write are one atomic statement.
func (r *WalletRepo) DebitTx(ctx context.Context, tx *sql.Tx, accountID uint64, amount decimal.Decimal) error {
	err := expectOne(tx.ExecContext(ctx,
		"UPDATE wallets SET balance = balance - ? WHERE account_id=? AND balance >= ?",
		amount, accountID, amount))
	if err == sql.ErrNoRows {
		return ErrInsufficientFunds
	}
	return err
}
