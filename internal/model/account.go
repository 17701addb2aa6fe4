package model

import (
	"database/sql"
	"time"
)

// Role names accepted in accounts.role.
const (
	RoleTalent   = "talent"
	RoleCreative = "creative"
	RoleClient   = "client"
	RoleAdmin    = "admin"
)

// SelfAssignableRoles are the roles a user may pick at signup or switch
// between later.  Admin is granted out of band.
var SelfAssignableRoles = []string{RoleTalent, RoleCreative, RoleClient}

// IsSelfAssignableRole reports whether role can be chosen by the account owner.
func IsSelfAssignableRole(role string) bool {
	for _, r := range SelfAssignableRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Account represents a marketplace user as stored in the `accounts`
// table.  Accounts created through an external identity provider have
// no password hash and can never log in with a password.
//
// Fields:
//  ID            – primary key identifier.
//  Email         – unique, stored lower case.
//  Username      – unique handle.
//  PasswordHash  – bcrypt hash (NULL for externally authenticated accounts).
//  EmailVerified – set once a verification token is consumed.
//  Role          – talent, creative, client or admin.
//  Suspended     – suspended accounts cannot log in.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type Account struct {
	ID            uint64         // accounts.id
	Email         string         // accounts.email
	Username      string         // accounts.username
	PasswordHash  sql.NullString // accounts.password_hash (nullable)
	EmailVerified bool           // accounts.email_verified
	Role          string         // accounts.role
	Suspended     bool           // accounts.suspended
	CreatedAt     time.Time      // accounts.created_at
	UpdatedAt     time.Time      // accounts.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored, only its SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	AccountID uint64     // refresh_tokens.account_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
