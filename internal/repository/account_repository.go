package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/talentbridge/marketplace-api/internal/model"
)

type AccountRepo struct{ db *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

const accountColumns = "id,email,username,password_hash,email_verified,role,suspended,created_at,updated_at"

func scanAccount(row interface{ Scan(...any) error }) (model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Email, &a.Username, &a.PasswordHash, &a.EmailVerified,
		&a.Role, &a.Suspended, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// CreateTx inserts an account inside tx and returns its ID.  Email is
// normalised to lower case.  Unique violations map to ErrEmailExists or
// ErrUsernameExists.
func (r *AccountRepo) CreateTx(ctx context.Context, tx *sql.Tx, a model.Account) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(a.Email))
	res, err := tx.ExecContext(ctx,
		"INSERT INTO accounts (email, username, password_hash, email_verified, role) VALUES (?,?,?,?,?)",
		email, a.Username, a.PasswordHash, a.EmailVerified, a.Role)
	if err != nil {
		if key, dup := duplicateKey(err); dup {
			if strings.Contains(key, "username") {
				return 0, ErrUsernameExists
			}
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanAccount(r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1", email))
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id))
}

// MarkEmailVerifiedTx sets email_verified on the account.
func (r *AccountRepo) MarkEmailVerifiedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	return expectOne(tx.ExecContext(ctx, "UPDATE accounts SET email_verified=1 WHERE id=?", id))
}

// UpdatePasswordTx overwrites the password hash.
func (r *AccountRepo) UpdatePasswordTx(ctx context.Context, tx *sql.Tx, id uint64, hash string) error {
	return expectOne(tx.ExecContext(ctx, "UPDATE accounts SET password_hash=? WHERE id=?", hash, id))
}

// UpdateRole changes the account role.
func (r *AccountRepo) UpdateRole(ctx context.Context, id uint64, role string) error {
	return expectOne(r.db.ExecContext(ctx, "UPDATE accounts SET role=? WHERE id=?", role, id))
}

// SetSuspended toggles the suspension flag.
func (r *AccountRepo) SetSuspended(ctx context.Context, id uint64, suspended bool) error {
	return expectOne(r.db.ExecContext(ctx, "UPDATE accounts SET suspended=? WHERE id=?", suspended, id))
}

// expectOne turns an UPDATE that matched no row into sql.ErrNoRows.
// Relies on the connection's clientFoundRows setting (see database.Open)
// so an unchanged row still counts as matched.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
