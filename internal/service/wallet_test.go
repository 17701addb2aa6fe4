package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/talentbridge/marketplace-api/internal/model"
	"github.com/talentbridge/marketplace-api/internal/queue"
	"github.com/talentbridge/marketplace-api/internal/repository"
)

type fakeWithdrawalPublisher struct {
	events []queue.WithdrawalRequestedEvent
	err    error
}

func (f *fakeWithdrawalPublisher) PublishWithdrawalRequested(_ context.Context, ev queue.WithdrawalRequestedEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

func newWalletService(t *testing.T, pub WithdrawalPublisher) (*WalletService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMock(t)
	svc := NewWalletService(db, repository.NewWalletRepo(db), repository.NewTransactionRepo(db),
		pub, decimal.RequireFromString("0.50"), zap.NewNop())
	return svc, mock
}

func TestRequestWithdrawalDebitsAndRecords(t *testing.T) {
	pub := &fakeWithdrawalPublisher{}
	svc, mock := newWalletService(t, pub)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET balance = balance - \\? WHERE account_id=\\? AND balance >= \\?").
		WithArgs(decimalArg("100.50"), uint64(3), decimalArg("100.50")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transaction_histories").
		WithArgs(sqlmock.AnyArg(), uint64(3), "withdrawal", "PENDING",
			decimalArg("100"), decimalArg("100"), decimalArg("0.5"), decimalArg("0.5")).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	txn, err := svc.RequestWithdrawal(context.Background(), 3, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, uint64(11), txn.ID)
	assert.Equal(t, model.TxStatusPending, txn.Status)
	assert.NotEmpty(t, txn.Reference)

	require.Len(t, pub.events, 1)
	assert.Equal(t, txn.Reference, pub.events[0].Reference)
	assert.Equal(t, "100.00", pub.events[0].Amount)
	assert.Equal(t, "0.50", pub.events[0].TotalFee)
}

func TestRequestWithdrawalInsufficientFunds(t *testing.T) {
	svc, mock := newWalletService(t, nil)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.RequestWithdrawal(context.Background(), 3, decimal.NewFromInt(5000))
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)
}

func TestRequestWithdrawalPublishFailureKeepsDebit(t *testing.T) {
	pub := &fakeWithdrawalPublisher{err: errors.New("broker down")}
	svc, mock := newWalletService(t, pub)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transaction_histories").WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectCommit()

	_, err := svc.RequestWithdrawal(context.Background(), 3, decimal.RequireFromString("9.99"))
	assert.NoError(t, err)
	assert.Len(t, pub.events, 1)
}

func TestRequestWithdrawalRejectsBadAmounts(t *testing.T) {
	svc, _ := newWalletService(t, nil)
	for _, a := range []string{"0", "-1", "1.001"} {
		_, err := svc.RequestWithdrawal(context.Background(), 3, decimal.RequireFromString(a))
		assert.ErrorIs(t, err, ErrInvalidAmount, a)
	}
}

func TestListTransactionsClampsPaging(t *testing.T) {
	svc, mock := newWalletService(t, nil)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transaction_histories").
		WithArgs(uint64(3)).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT .* FROM transaction_histories WHERE account_id=\\? ORDER BY").
		WithArgs(uint64(3), MaxPageSize, 0).
		WillReturnRows(sqlmock.NewRows(transactionCols).AddRow(
			uint64(1), "R1", uint64(3), "withdrawal", "PENDING", "10.00", "10.00", "0.50", "0.50", t0, t0))

	page, err := svc.ListTransactions(context.Background(), 3, 0, 500)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, MaxPageSize, page.Limit)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "R1", page.Items[0].Reference)
}
