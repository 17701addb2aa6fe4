// Package service holds the business logic behind the HTTP handlers:
// credential tokens, account flows, wallet operations and payment
// webhook reconciliation.
package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/talentbridge/marketplace-api/internal/metrics"
	"github.com/talentbridge/marketplace-api/internal/model"
	"github.com/talentbridge/marketplace-api/internal/repository"
	"github.com/talentbridge/marketplace-api/internal/utils"
)

// Purpose names what a consumed token unlocks.
type Purpose string

const (
	PurposeEmail    Purpose = "email"
	PurposePassword Purpose = "password"
)

var (
	ErrTokenMismatch  = errors.New("token does not match")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("malformed token")
)

const (
	tokenTTL    = 7 * 24 * time.Hour
	nonceLength = 10
)

// IssuedToken is what callers hand to the user.  Token is base64 of the
// hex digest; the digest itself is what the store keys on.
type IssuedToken struct {
	Token       string    `json:"token"`
	TokenExpiry time.Time `json:"token_expiry"`
}

// SideEffect runs inside the consuming transaction once a token has been
// accepted.
type SideEffect func(ctx context.Context, tx *sql.Tx, accountID uint64) error

// CredentialService issues and consumes single-use validation tokens.
// Every account has at most one outstanding token; issuing replaces it.
type CredentialService struct {
	db     *sql.DB
	tokens *repository.ValidationTokenRepo
	secret []byte
	now    func() time.Time
	log    *zap.Logger
}

// CredentialOption customises a CredentialService.
type CredentialOption func(*CredentialService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CredentialOption {
	return func(s *CredentialService) { s.now = now }
}

func NewCredentialService(db *sql.DB, tokens *repository.ValidationTokenRepo, secret string,
	log *zap.Logger, opts ...CredentialOption) *CredentialService {
	s := &CredentialService{
		db:     db,
		tokens: tokens,
		secret: []byte(secret),
		now:    time.Now,
		log:    log.Named("credentials"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// digest is hex(HMAC-SHA256(secret, "<accountID>-<nonce>")).
func (s *CredentialService) digest(accountID uint64, nonce string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strconv.FormatUint(accountID, 10) + "-" + nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue creates a fresh token for the account, replacing any previous one.
// The expiry is truncated to whole seconds because that is what the
// store keeps.
func (s *CredentialService) Issue(ctx context.Context, accountID uint64, purpose Purpose) (IssuedToken, error) {
	nonce, err := utils.RandomString(nonceLength)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("generate nonce: %w", err)
	}
	digest := s.digest(accountID, nonce)
	expiry := s.now().UTC().Add(tokenTTL).Truncate(time.Second)

	if err := s.tokens.Upsert(ctx, model.ValidationToken{
		AccountID:   accountID,
		Token:       digest,
		RandomCode:  nonce,
		TokenExpiry: expiry,
	}); err != nil {
		return IssuedToken{}, fmt.Errorf("store token: %w", err)
	}
	metrics.TokenIssued(string(purpose))
	return IssuedToken{
		Token:       base64.StdEncoding.EncodeToString([]byte(digest)),
		TokenExpiry: expiry,
	}, nil
}

// decodeToken recovers the hex digest from the outward token.  Query
// strings sometimes turn '+' into ' ', and some clients re-encode with
// the URL alphabet, so both are accepted.
func decodeToken(received string) (string, error) {
	received = strings.ReplaceAll(strings.TrimSpace(received), " ", "+")
	if received == "" {
		return "", ErrTokenMalformed
	}
	raw, err := base64.StdEncoding.DecodeString(received)
	if err != nil {
		if raw, err = base64.URLEncoding.DecodeString(received); err != nil {
			return "", ErrTokenMalformed
		}
	}
	if len(raw) != sha256.Size*2 {
		return "", ErrTokenMalformed
	}
	if _, err := hex.DecodeString(string(raw)); err != nil {
		return "", ErrTokenMalformed
	}
	return string(raw), nil
}

// Validate checks received against stored.  The digest is recomputed
// from the stored nonce and compared in constant time; only a matching
// token is checked for expiry.  An expired row is deleted before
// ErrTokenExpired is returned.  A token is still valid at exactly its
// expiry instant.
func (s *CredentialService) Validate(ctx context.Context, received string, stored model.ValidationToken) error {
	claimed, err := decodeToken(received)
	if err != nil {
		return err
	}
	want := s.digest(stored.AccountID, stored.RandomCode)
	if !hmac.Equal([]byte(claimed), []byte(want)) {
		return ErrTokenMismatch
	}
	if stored.Expired(s.now()) {
		if err := s.tokens.Delete(ctx, stored.AccountID, stored.Token); err != nil {
			return fmt.Errorf("delete expired token: %w", err)
		}
		return ErrTokenExpired
	}
	return nil
}

// Consume looks the token up by its digest, validates it and then, in one
// transaction, applies effect and deletes the row.  It returns the account
// the token belonged to.  If the row vanished between lookup and delete
// (another request consumed or reissued it) the transaction is rolled back
// and ErrTokenMismatch returned.
func (s *CredentialService) Consume(ctx context.Context, received string, purpose Purpose, effect SideEffect) (uint64, error) {
	accountID, err := s.consume(ctx, received, effect)
	metrics.TokenConsumed(string(purpose), consumeResult(err))
	return accountID, err
}

func (s *CredentialService) consume(ctx context.Context, received string, effect SideEffect) (uint64, error) {
	digest, err := decodeToken(received)
	if err != nil {
		return 0, err
	}
	stored, err := s.tokens.GetByToken(ctx, digest)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrTokenMismatch
	}
	if err != nil {
		return 0, fmt.Errorf("load token: %w", err)
	}
	if err := s.Validate(ctx, received, stored); err != nil {
		if errors.Is(err, ErrTokenExpired) {
			s.log.Info("expired token presented", zap.Uint64("account_id", stored.AccountID))
		}
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := effect(ctx, tx, stored.AccountID); err != nil {
		return 0, err
	}
	if err := s.tokens.DeleteTx(ctx, tx, stored.AccountID, stored.Token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTokenMismatch
		}
		return 0, fmt.Errorf("delete token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return stored.AccountID, nil
}

func consumeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTokenMismatch):
		return "mismatch"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	default:
		return "error"
	}
}

// NeedsReissue reports whether a new token should be sent to the account:
// true when none is stored or the stored one has expired.  A live token is
// never replaced this way so repeated logins do not spam the inbox.
func (s *CredentialService) NeedsReissue(ctx context.Context, accountID uint64) (bool, error) {
	stored, err := s.tokens.GetByAccount(ctx, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("load token: %w", err)
	}
	return stored.Expired(s.now()), nil
}
