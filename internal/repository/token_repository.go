package repository

import (
	"context"
	"database/sql"

	"github.com/talentbridge/marketplace-api/internal/model"
)

// ValidationTokenRepo persists the one outstanding verification or reset
// token per account.  account_id is the primary key, so Upsert replaces
// any previous token in a single statement.
type ValidationTokenRepo struct{ db *sql.DB }

func NewValidationTokenRepo(db *sql.DB) *ValidationTokenRepo { return &ValidationTokenRepo{db: db} }

// Upsert stores t, overwriting the account's previous token if any.
func (r *ValidationTokenRepo) Upsert(ctx context.Context, t model.ValidationToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO validation_tokens (account_id, token, random_code, token_expiry) VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE token=VALUES(token), random_code=VALUES(random_code),
		 token_expiry=VALUES(token_expiry), created_at=CURRENT_TIMESTAMP`,
		t.AccountID, t.Token, t.RandomCode, t.TokenExpiry.UTC())
	return err
}

const validationTokenColumns = "account_id, token, random_code, token_expiry, created_at"

func scanValidationToken(row *sql.Row) (model.ValidationToken, error) {
	var t model.ValidationToken
	err := row.Scan(&t.AccountID, &t.Token, &t.RandomCode, &t.TokenExpiry, &t.CreatedAt)
	return t, err
}

// GetByAccount returns the account's stored token or sql.ErrNoRows.
func (r *ValidationTokenRepo) GetByAccount(ctx context.Context, accountID uint64) (model.ValidationToken, error) {
	return scanValidationToken(r.db.QueryRowContext(ctx,
		"SELECT "+validationTokenColumns+" FROM validation_tokens WHERE account_id=? LIMIT 1", accountID))
}

// GetByToken looks a row up by its hex digest or returns sql.ErrNoRows.
func (r *ValidationTokenRepo) GetByToken(ctx context.Context, token string) (model.ValidationToken, error) {
	return scanValidationToken(r.db.QueryRowContext(ctx,
		"SELECT "+validationTokenColumns+" FROM validation_tokens WHERE token=? LIMIT 1", token))
}

// Delete removes the account's token if it still holds the given digest.
// Deleting a missing row is not an error.
func (r *ValidationTokenRepo) Delete(ctx context.Context, accountID uint64, token string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM validation_tokens WHERE account_id=? AND token=?", accountID, token)
	return err
}

// DeleteTx removes the token row inside tx, matching on the digest as
// well so a token reissued concurrently is left alone.  It returns
// sql.ErrNoRows when nothing was deleted.
func (r *ValidationTokenRepo) DeleteTx(ctx context.Context, tx *sql.Tx, accountID uint64, token string) error {
	return expectOne(tx.ExecContext(ctx,
		"DELETE FROM validation_tokens WHERE account_id=? AND token=?", accountID, token))
}
