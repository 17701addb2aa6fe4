package repository

import (
	"context"
	"database/sql"

	"github.com/talentbridge/marketplace-api/internal/model"
)

// TransactionRepo provides access to transaction_histories, the ledger of
// deposits and withdrawals.  Rows are never deleted.
type TransactionRepo struct{ db *sql.DB }

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

const transactionColumns = `id, reference, account_id, type, status, amount, settlement_amount,
	processing_fee, total_fee, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (model.TransactionHistory, error) {
	var t model.TransactionHistory
	err := row.Scan(&t.ID, &t.Reference, &t.AccountID, &t.Type, &t.Status, &t.Amount,
		&t.SettlementAmount, &t.ProcessingFee, &t.TotalFee, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// CreateTx inserts t and fills in its generated ID.  A duplicate
// reference yields ErrConflict.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.TransactionHistory) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transaction_histories
		 (reference, account_id, type, status, amount, settlement_amount, processing_fee, total_fee)
		 VALUES (?,?,?,?,?,?,?,?)`,
		t.Reference, t.AccountID, t.Type, t.Status, t.Amount, t.SettlementAmount, t.ProcessingFee, t.TotalFee)
	if err != nil {
		if _, dup := duplicateKey(err); dup {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// LockByReferenceTx loads the row for reference with SELECT ... FOR UPDATE
// so concurrent webhook deliveries for the same reference serialise on it.
// Returns sql.ErrNoRows for an unknown reference.
func (r *TransactionRepo) LockByReferenceTx(ctx context.Context, tx *sql.Tx, reference string) (model.TransactionHistory, error) {
	return scanTransaction(tx.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transaction_histories WHERE reference=? FOR UPDATE", reference))
}

// UpdateStatusTx overwrites the status of the row.
func (r *TransactionRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	return expectOne(tx.ExecContext(ctx,
		"UPDATE transaction_histories SET status=? WHERE id=?", status, id))
}

// ListByAccount returns one page of the account's ledger, newest first,
// together with the total row count.
func (r *TransactionRepo) ListByAccount(ctx context.Context, accountID uint64, limit, offset int) ([]model.TransactionHistory, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transaction_histories WHERE account_id=?", accountID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transaction_histories WHERE account_id=? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]model.TransactionHistory, 0, limit)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
