package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentbridge/marketplace-api/internal/model"
)

// decimalArg matches a driver value holding the given decimal amount.
type decimalArg string

func (d decimalArg) Match(v driver.Value) bool {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return false
	}
	got, err := decimal.NewFromString(s)
	return err == nil && got.Equal(decimal.RequireFromString(string(d)))
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestAccountCreateTxMapsDuplicateKeys(t *testing.T) {
	cases := []struct {
		name string
		key  string
		want error
	}{
		{"email", "accounts.uq_accounts_email", ErrEmailExists},
		{"username", "accounts.uq_accounts_username", ErrUsernameExists},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO accounts").
				WithArgs("ada@example.com", "ada", sqlmock.AnyArg(), false, model.RoleTalent).
				WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key '" + tc.key + "'"})
			mock.ExpectRollback()

			tx, err := db.Begin()
			require.NoError(t, err)
			_, err = NewAccountRepo(db).CreateTx(context.Background(), tx, model.Account{
				Email:    "  Ada@Example.com ",
				Username: "ada",
				Role:     model.RoleTalent,
			})
			require.ErrorIs(t, err, tc.want)
			require.NoError(t, tx.Rollback())
		})
	}
}

func TestAccountSetSuspendedMissingRow(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("UPDATE accounts SET suspended=\\? WHERE id=\\?").
		WithArgs(true, uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewAccountRepo(db).SetSuspended(context.Background(), 9, true)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestValidationTokenUpsertIsKeyedOnAccount(t *testing.T) {
	db, mock := newMock(t)
	exp := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO validation_tokens .* ON DUPLICATE KEY UPDATE").
		WithArgs(uint64(1), "abc", "nonce", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewValidationTokenRepo(db).Upsert(context.Background(), model.ValidationToken{
		AccountID: 1, Token: "abc", RandomCode: "nonce", TokenExpiry: exp,
	})
	require.NoError(t, err)
}

func TestValidationTokenGetByToken(t *testing.T) {
	db, mock := newMock(t)
	exp := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .* FROM validation_tokens WHERE token=\\?").
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "token", "random_code", "token_expiry", "created_at"}).
			AddRow(uint64(7), "abc", "nonce", exp, exp.Add(-7*24*time.Hour)))

	tok, err := NewValidationTokenRepo(db).GetByToken(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), tok.AccountID)
	assert.Equal(t, "nonce", tok.RandomCode)
	assert.True(t, tok.TokenExpiry.Equal(exp))
}

func TestWalletDebitTxInsufficientFunds(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET balance = balance - \\? WHERE account_id=\\? AND balance >= \\?").
		WithArgs(decimalArg("150"), uint64(3), decimalArg("150")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = NewWalletRepo(db).DebitTx(context.Background(), tx, 3, decimal.NewFromInt(150))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.NoError(t, tx.Rollback())
}

func TestTransactionListByAccount(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	cols := []string{"id", "reference", "account_id", "type", "status", "amount", "settlement_amount",
		"processing_fee", "total_fee", "created_at", "updated_at"}

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transaction_histories WHERE account_id=\\?").
		WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT .* FROM transaction_histories WHERE account_id=\\? ORDER BY created_at DESC, id DESC LIMIT \\? OFFSET \\?").
		WithArgs(uint64(4), 2, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(3, "R3", 4, "withdrawal", "PENDING", "100.00", "100.00", "0.50", "0.50", now, now).
			AddRow(2, "D2", 4, "deposit", "SUCCESS", "20.00", "20.00", "0.00", "0.00", now, now))

	items, total, err := NewTransactionRepo(db).ListByAccount(context.Background(), 4, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "R3", items[0].Reference)
	assert.True(t, items[0].TotalFee.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, model.TxTypeDeposit, items[1].Type)
}

func TestTransactionCreateTxDuplicateReference(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transaction_histories").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'R1' for key 'transaction_histories.uq_transaction_histories_reference'"})
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = NewTransactionRepo(db).CreateTx(context.Background(), tx, &model.TransactionHistory{Reference: "R1"})
	require.ErrorIs(t, err, ErrConflict)
	require.NoError(t, tx.Rollback())
}
