package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentbridge/marketplace-api/internal/mailer"
)

const testSecret = "test-hmac-secret"

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

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

// decimalArg matches a driver value holding the given decimal amount.
type decimalArg string

func (d decimalArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	got, err := decimal.NewFromString(s)
	return err == nil && got.Equal(decimal.RequireFromString(string(d)))
}

// timeArg matches a time.Time argument by instant.
type timeArg time.Time

func (a timeArg) Match(v driver.Value) bool {
	got, ok := v.(time.Time)
	return ok && got.Equal(time.Time(a))
}

// captureArg records the string it was matched against.
type captureArg struct{ v *string }

func (c captureArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	*c.v = s
	return ok
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// fakeSender records every message instead of sending it.
type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, m mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

var tokenCols = []string{"account_id", "token", "random_code", "token_expiry", "created_at"}

var accountCols = []string{"id", "email", "username", "password_hash", "email_verified", "role", "suspended", "created_at", "updated_at"}

var transactionCols = []string{"id", "reference", "account_id", "type", "status", "amount",
	"settlement_amount", "processing_fee", "total_fee", "created_at", "updated_at"}

func mysqlDuplicate(key string) error {
	return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key '" + key + "'"}
}
