package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/talentbridge/marketplace-api/internal/repository"
	"github.com/talentbridge/marketplace-api/internal/utils"
)

type authFixture struct {
	svc   *AuthService
	creds *CredentialService
	mock  sqlmock.Sqlmock
	mail  *fakeSender
	clk   *clock
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db, mock := newMock(t)
	clk := &clock{now: t0}
	mail := &fakeSender{}
	creds := NewCredentialService(db, repository.NewValidationTokenRepo(db), testSecret, zap.NewNop(), WithClock(clk.Now))
	svc := NewAuthService(db, repository.NewAccountRepo(db), repository.NewWalletRepo(db),
		repository.NewRefreshTokenRepo(db), creds, mail, AuthConfig{
			JWTSecret:      "jwt-secret",
			AccessTTLMin:   15,
			RefreshTTLDays: 7,
			BcryptCost:     bcrypt.MinCost,
			BaseURL:        "https://app.example.com",
		}, zap.NewNop())
	return &authFixture{svc: svc, creds: creds, mock: mock, mail: mail, clk: clk}
}

func hashFor(t *testing.T, pw string) string {
	t.Helper()
	h, err := utils.HashPassword(pw, bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func (f *authFixture) expectAccountByEmail(email, hash string, verified, suspended bool) {
	f.mock.ExpectQuery("SELECT .* FROM accounts WHERE email=").
		WithArgs(email).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(
			uint64(7), email, "alice", hash, verified, "talent", suspended, t0, t0))
}

func TestSignupCreatesAccountWalletAndSendsVerification(t *testing.T) {
	f := newAuthFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO accounts").
		WithArgs("alice@example.com", "alice", sqlmock.AnyArg(), false, "talent").
		WillReturnResult(sqlmock.NewResult(7, 1))
	f.mock.ExpectExec("INSERT INTO wallets").WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()
	f.mock.ExpectExec("INSERT INTO validation_tokens").WillReturnResult(sqlmock.NewResult(0, 1))

	acc, err := f.svc.Signup(context.Background(), SignupInput{
		Email: " Alice@Example.com ", Username: "alice", Password: "s3cretpass", Role: "talent",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), acc.ID)
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "alice@example.com", f.mail.sent[0].To)
	assert.Contains(t, f.mail.sent[0].HTML, "https://app.example.com/verify-email?token=")
}

func TestSignupDuplicateEmailRollsBack(t *testing.T) {
	f := newAuthFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO accounts").WillReturnError(mysqlDuplicate("accounts.uq_accounts_email"))
	f.mock.ExpectRollback()

	_, err := f.svc.Signup(context.Background(), SignupInput{
		Email: "alice@example.com", Username: "alice", Password: "s3cretpass", Role: "client",
	})
	assert.ErrorIs(t, err, repository.ErrEmailExists)
	assert.Empty(t, f.mail.sent)
}

func TestSignupRejectsAdminRole(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.Signup(context.Background(), SignupInput{Email: "a@b.c", Username: "abc", Password: "pw123456", Role: "admin"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestLoginVerifiedIssuesSession(t *testing.T) {
	f := newAuthFixture(t)
	f.expectAccountByEmail("alice@example.com", hashFor(t, "s3cretpass"), true, false)
	f.mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(uint64(7), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sess, err := f.svc.Login(context.Background(), "alice@example.com", "s3cretpass")
	require.NoError(t, err)
	claims, err := utils.ParseAccessToken("jwt-secret", sess.AccessToken)
	require.NoError(t, err)
	id, _ := claims.AccountID()
	assert.Equal(t, uint64(7), id)
	assert.Equal(t, "talent", claims.Role)
	assert.NotEmpty(t, sess.RefreshToken)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.expectAccountByEmail("alice@example.com", hashFor(t, "s3cretpass"), true, false)
	_, err := f.svc.Login(context.Background(), "alice@example.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.mock.ExpectQuery("SELECT .* FROM accounts WHERE email=").WillReturnRows(sqlmock.NewRows(accountCols))
	_, err := f.svc.Login(context.Background(), "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginSuspended(t *testing.T) {
	f := newAuthFixture(t)
	f.expectAccountByEmail("alice@example.com", hashFor(t, "s3cretpass"), true, true)
	_, err := f.svc.Login(context.Background(), "alice@example.com", "s3cretpass")
	assert.ErrorIs(t, err, ErrAccountSuspended)
}

func TestUnverifiedLoginReissueSuppression(t *testing.T) {
	hash := hashFor(t, "s3cretpass")

	t.Run("live token is not replaced", func(t *testing.T) {
		f := newAuthFixture(t)
		f.expectAccountByEmail("alice@example.com", hash, false, false)
		f.mock.ExpectQuery("SELECT .* FROM validation_tokens WHERE account_id=").
			WithArgs(uint64(7)).
			WillReturnRows(sqlmock.NewRows(tokenCols).AddRow(uint64(7), strings.Repeat("a", 64), "abcdefghij", t0.Add(time.Hour), t0))

		_, err := f.svc.Login(context.Background(), "alice@example.com", "s3cretpass")
		assert.ErrorIs(t, err, ErrEmailNotVerified)
		assert.Empty(t, f.mail.sent)
	})

	t.Run("expired token is reissued", func(t *testing.T) {
		f := newAuthFixture(t)
		f.expectAccountByEmail("alice@example.com", hash, false, false)
		f.mock.ExpectQuery("SELECT .* FROM validation_tokens WHERE account_id=").
			WithArgs(uint64(7)).
			WillReturnRows(sqlmock.NewRows(tokenCols).AddRow(uint64(7), strings.Repeat("a", 64), "abcdefghij", t0.Add(-time.Second), t0))
		f.mock.ExpectExec("INSERT INTO validation_tokens").WillReturnResult(sqlmock.NewResult(0, 2))

		_, err := f.svc.Login(context.Background(), "alice@example.com", "s3cretpass")
		assert.ErrorIs(t, err, ErrEmailNotVerified)
		assert.Len(t, f.mail.sent, 1)
	})

	t.Run("missing token is issued", func(t *testing.T) {
		f := newAuthFixture(t)
		f.expectAccountByEmail("alice@example.com", hash, false, false)
		f.mock.ExpectQuery("SELECT .* FROM validation_tokens WHERE account_id=").
			WithArgs(uint64(7)).WillReturnRows(sqlmock.NewRows(tokenCols))
		f.mock.ExpectExec("INSERT INTO validation_tokens").WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := f.svc.Login(context.Background(), "alice@example.com", "s3cretpass")
		assert.ErrorIs(t, err, ErrEmailNotVerified)
		assert.Len(t, f.mail.sent, 1)
	})
}

func TestEmailSendFailurePropagates(t *testing.T) {
	f := newAuthFixture(t)
	f.mail.err = errors.New("smtp down")
	f.expectAccountByEmail("alice@example.com", hashFor(t, "s3cretpass"), false, false)
	f.mock.ExpectQuery("SELECT .* FROM validation_tokens WHERE account_id=").WillReturnRows(sqlmock.NewRows(tokenCols))
	f.mock.ExpectExec("INSERT INTO validation_tokens").WillReturnResult(sqlmock.NewResult(0, 1))

	err := f.svc.ResendVerification(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, f.mail.err)
}

func TestForgotPasswordUnknownEmailSendsNothing(t *testing.T) {
	f := newAuthFixture(t)
	f.mock.ExpectQuery("SELECT .* FROM accounts WHERE email=").WillReturnRows(sqlmock.NewRows(accountCols))
	require.NoError(t, f.svc.ForgotPassword(context.Background(), "ghost@example.com"))
	assert.Empty(t, f.mail.sent)
}

func TestForgotPasswordEmailsResetLink(t *testing.T) {
	f := newAuthFixture(t)
	f.expectAccountByEmail("alice@example.com", hashFor(t, "s3cretpass"), true, false)
	f.mock.ExpectExec("INSERT INTO validation_tokens").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "alice@example.com"))
	require.Len(t, f.mail.sent, 1)
	assert.Contains(t, f.mail.sent[0].HTML, "https://app.example.com/reset-password?token=")
}

func TestVerifyEmailMarksAccountAndDeletesToken(t *testing.T) {
	f := newAuthFixture(t)
	digest := f.creds.digest(7, "abcdefghij")
	f.mock.ExpectQuery("SELECT .* FROM validation_tokens WHERE token=").WithArgs(digest).
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow(uint64(7), digest, "abcdefghij", t0.Add(time.Hour), t0))
	f.mock.ExpectBegin()
	f.mock.ExpectExec("UPDATE accounts SET email_verified=1 WHERE id=\\?").
		WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("DELETE FROM validation_tokens").
		WithArgs(uint64(7), digest).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	err := f.svc.VerifyEmail(context.Background(), base64.StdEncoding.EncodeToString([]byte(digest)))
	assert.NoError(t, err)
}

func TestResetPasswordUpdatesHashAndRevokesSessions(t *testing.T) {
	f := newAuthFixture(t)
	digest := f.creds.digest(7, "klmnopqrst")
	f.mock.ExpectQuery("SELECT .* FROM validation_tokens WHERE token=").WithArgs(digest).
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow(uint64(7), digest, "klmnopqrst", t0.Add(time.Hour), t0))
	f.mock.ExpectBegin()
	f.mock.ExpectExec("UPDATE accounts SET password_hash=\\? WHERE id=\\?").
		WithArgs(sqlmock.AnyArg(), uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
		WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 2))
	f.mock.ExpectExec("DELETE FROM validation_tokens").
		WithArgs(uint64(7), digest).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	err := f.svc.ResetPassword(context.Background(), base64.StdEncoding.EncodeToString([]byte(digest)), "n3w-passw0rd")
	assert.NoError(t, err)
}

func TestUpdateRole(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.UpdateRole(context.Background(), 7, "admin")
	assert.ErrorIs(t, err, ErrInvalidRole)

	f.mock.ExpectQuery("SELECT .* FROM accounts WHERE id=").WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(uint64(7), "a@b.c", "alice", nil, true, "talent", false, t0, t0))
	f.mock.ExpectExec("UPDATE accounts SET role=").WithArgs("client", uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	acc, err := f.svc.UpdateRole(context.Background(), 7, "client")
	require.NoError(t, err)
	assert.Equal(t, "client", acc.Role)
}

func TestSetSuspension(t *testing.T) {
	f := newAuthFixture(t)
	assert.ErrorIs(t, f.svc.SetSuspension(context.Background(), 1, 1, true), repository.ErrForbidden)

	f.mock.ExpectExec("UPDATE accounts SET suspended=").WithArgs(true, uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, f.svc.SetSuspension(context.Background(), 1, 7, true))
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	raw := "raw-refresh"
	f.mock.ExpectQuery("SELECT account_id, expires_at, revoked_at FROM refresh_tokens").
		WithArgs(utils.HashRefreshRaw(raw)).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "expires_at", "revoked_at"}).
			AddRow(uint64(7), time.Now().Add(time.Hour), nil))
	f.mock.ExpectQuery("SELECT .* FROM accounts WHERE id=").WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(uint64(7), "a@b.c", "alice", "x", true, "client", false, t0, t0))
	f.mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
		WithArgs(utils.HashRefreshRaw(raw)).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(2, 1))

	sess, err := f.svc.Refresh(context.Background(), raw)
	require.NoError(t, err)
	assert.NotEqual(t, raw, sess.RefreshToken)
}
